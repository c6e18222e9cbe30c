package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"repoharvest/internal/core/normalize"
	perr "repoharvest/internal/platform/errors"
)

// Analysis is the coerced model output keyed by field name.
// Values are int for int fields and string otherwise.
type Analysis map[string]any

// Int returns an int field, 0 when absent
func (a Analysis) Int(name string) int {
	v, _ := a[name].(int)
	return v
}

// Text returns a string field, "" when absent
func (a Analysis) Text(name string) string {
	v, _ := a[name].(string)
	return v
}

// Decode parses model output against the taxonomy. Undecodable JSON is
// ErrorCodeJSON and a missing required field is ErrorCodeMalformed, both
// retried upstream. Present but out-of-domain values never fail: ints are
// clamped, unknown enum values take the field default, text is cleaned and capped.
func Decode(content string, t Taxonomy) (Analysis, error) {
	body := extractObject(content)
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "decode model output")
	}

	out := make(Analysis, len(t.Fields))
	for _, f := range t.Fields {
		msg, ok := raw[f.Name]
		if !ok || isNull(msg) {
			if f.Required {
				return nil, perr.Malformedf("model output missing required field %q", f.Name)
			}
			out[f.Name] = f.zero()
			continue
		}
		out[f.Name] = f.coerce(msg)
	}
	return out, nil
}

func (f Field) zero() any {
	if f.Kind == KindInt {
		return f.defInt
	}
	return f.Default
}

func (f Field) coerce(msg json.RawMessage) any {
	switch f.Kind {
	case KindInt:
		n, ok := asInt(msg)
		if !ok {
			return f.defInt
		}
		return min(max(n, f.Min), f.Max)
	case KindEnum:
		s, ok := asString(msg)
		if !ok {
			return f.Default
		}
		s = strings.ToLower(strings.TrimSpace(s))
		for _, v := range f.Values {
			if strings.EqualFold(v, s) {
				return v
			}
		}
		return f.Default
	default:
		s, ok := asString(msg)
		if !ok {
			return f.Default
		}
		s = normalize.Clean(s)
		if f.MaxRunes > 0 {
			s = normalize.Truncate(s, f.MaxRunes)
		}
		return s
	}
}

// asInt accepts JSON numbers and numeric strings; fractions round to nearest
func asInt(msg json.RawMessage) (int, bool) {
	var num json.Number
	if s, ok := asString(msg); ok {
		num = json.Number(strings.TrimSpace(s))
	} else {
		dec := json.NewDecoder(bytes.NewReader(msg))
		dec.UseNumber()
		if err := dec.Decode(&num); err != nil {
			return 0, false
		}
	}
	if i, err := strconv.ParseInt(num.String(), 10, 64); err == nil {
		return int(max(min(i, math.MaxInt32), math.MinInt32)), true
	}
	fl, err := strconv.ParseFloat(num.String(), 64)
	if err != nil || math.IsNaN(fl) || math.IsInf(fl, 0) {
		return 0, false
	}
	return int(math.Round(max(min(fl, math.MaxInt32), math.MinInt32))), true
}

func asString(msg json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		return "", false
	}
	return s, true
}

func isNull(msg json.RawMessage) bool {
	return string(bytes.TrimSpace(msg)) == "null"
}

// extractObject strips markdown code fences and any prose around the first JSON object
func extractObject(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if i, j := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); i >= 0 && j > i {
		return s[i : j+1]
	}
	return s
}
