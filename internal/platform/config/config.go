// Package config reads application settings from environment variables.
// Must* accessors panic through the root logger so a misconfigured binary
// dies before doing any work; May* accessors fall back to a default.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"repoharvest/internal/platform/logger"
)

// DateLayout is the calendar-day format accepted by MayDate
const DateLayout = "2006-01-02"

// Conf is a namespaced view over environment variables (e.g. "CORE_HARVEST_")
type Conf struct{ prefix string }

// New creates a root Conf
func New() Conf { return Conf{} }

// Prefix creates a child Conf with an additional prefix
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

func (c Conf) key(k string) string { return c.prefix + k }

func (c Conf) get(k string) string { return strings.TrimSpace(os.Getenv(c.key(k))) }

// Has reports whether key is set to a non-blank value
func (c Conf) Has(key string) bool { return c.get(key) != "" }

// MustString panics if key is missing or blank
func (c Conf) MustString(key string) string {
	v := c.get(key)
	if v == "" {
		logger.Get().Panic().Str("key", c.key(key)).Msg("missing required env")
	}
	return v
}

// MustInt panics if key is missing or not an int
func (c Conf) MustInt(key string) int {
	s := c.MustString(key)
	v, err := strconv.Atoi(s)
	if err != nil {
		logger.Get().Panic().Str("key", c.key(key)).Str("value", s).Msg("invalid int value")
	}
	return v
}

// Require panics on the first missing key
func (c Conf) Require(keys ...string) {
	for _, k := range keys {
		if c.get(k) == "" {
			logger.Get().Panic().Str("key", c.key(k)).Msg("missing required env")
		}
	}
}

// MayString returns the value or def
func (c Conf) MayString(key, def string) string {
	if v := c.get(key); v != "" {
		return v
	}
	return def
}

// MayInt returns the value or def; invalid values are logged and ignored
func (c Conf) MayInt(key string, def int) int {
	s := c.get(key)
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Int("default", def).Msg("invalid int; using default")
	return def
}

// MayUint64 returns the value or def; invalid values are logged and ignored
func (c Conf) MayUint64(key string, def uint64) uint64 {
	s := c.get(key)
	if s == "" {
		return def
	}
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Uint64("default", def).Msg("invalid uint64; using default")
	return def
}

// MayFloat64 returns the value or def; invalid values are logged and ignored
func (c Conf) MayFloat64(key string, def float64) float64 {
	s := c.get(key)
	if s == "" {
		return def
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Float64("default", def).Msg("invalid float64; using default")
	return def
}

// MayBool returns the value or def; invalid values are logged and ignored
func (c Conf) MayBool(key string, def bool) bool {
	s := c.get(key)
	if s == "" {
		return def
	}
	if v, err := strconv.ParseBool(s); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Bool("default", def).Msg("invalid bool; using default")
	return def
}

// MayDuration returns the value or def; invalid values are logged and ignored
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	s := c.get(key)
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Dur("default", def).Msg("invalid duration; using default")
	return def
}

// MayDate parses a YYYY-MM-DD value as a UTC day; an unparsable value panics
func (c Conf) MayDate(key string, def time.Time) time.Time {
	s := c.get(key)
	if s == "" {
		return def
	}
	d, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		logger.Get().Panic().Str("key", c.key(key)).Str("value", s).Msg("invalid date; expected YYYY-MM-DD")
	}
	return d
}

// MayCSV splits a comma-separated value, dropping blanks; def when nothing remains
func (c Conf) MayCSV(key string, def []string) []string {
	s := c.get(key)
	if s == "" {
		return def
	}
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// MayEnum returns the value (lowercased) when it is one of allowed, def when unset; panics otherwise
func (c Conf) MayEnum(key, def string, allowed ...string) string {
	v := c.MayString(key, def)
	if v == "" {
		return v
	}
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return strings.ToLower(v)
		}
	}
	logger.Get().Panic().Str("key", c.key(key)).Str("value", v).Strs("allowed", allowed).Msg("invalid enum value")
	return ""
}
