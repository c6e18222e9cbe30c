package domain

import (
	"bytes"
	_ "embed"
	"os"
	"slices"
	"strconv"
	"strings"

	perr "repoharvest/internal/platform/errors"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultTaxonomyYAML []byte

// FieldKind is the declared domain of one output field
type FieldKind string

const (
	KindInt  FieldKind = "int"
	KindEnum FieldKind = "enum"
	KindText FieldKind = "text"
)

// Field declares one structured output and how untrusted values are coerced into it
type Field struct {
	Name     string    `yaml:"name"`
	Kind     FieldKind `yaml:"kind"`
	Min      int       `yaml:"min"`
	Max      int       `yaml:"max"`
	Values   []string  `yaml:"values"`
	MaxRunes int       `yaml:"max_runes"`
	Default  string    `yaml:"default"`
	Required bool      `yaml:"required"`

	defInt int
}

// Taxonomy is the instruction context plus the field schema
type Taxonomy struct {
	SystemPrompt string   `yaml:"system_prompt"`
	Fields       []Field  `yaml:"fields"`
	Tally        []string `yaml:"tally"`
}

// DefaultTaxonomy returns the embedded taxonomy
func DefaultTaxonomy() Taxonomy {
	t, err := ParseTaxonomy(defaultTaxonomyYAML)
	if err != nil {
		panic("classify: embedded taxonomy.yaml is invalid: " + err.Error())
	}
	return t
}

// LoadTaxonomy reads a taxonomy from path, or returns the embedded one when path is empty
func LoadTaxonomy(path string) (Taxonomy, error) {
	if path == "" {
		return DefaultTaxonomy(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Taxonomy{}, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "taxonomy read %s", path)
	}
	return ParseTaxonomy(b)
}

// ParseTaxonomy decodes and checks a taxonomy; unknown keys are rejected
func ParseTaxonomy(b []byte) (Taxonomy, error) {
	var t Taxonomy
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return Taxonomy{}, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "taxonomy decode")
	}
	if len(t.Fields) == 0 {
		return Taxonomy{}, perr.InvalidArgf("taxonomy declares no fields")
	}
	seen := map[string]bool{}
	for i := range t.Fields {
		f := &t.Fields[i]
		if f.Name == "" || seen[f.Name] {
			return Taxonomy{}, perr.InvalidArgf("taxonomy field %d: missing or duplicate name %q", i, f.Name)
		}
		seen[f.Name] = true
		if err := f.check(); err != nil {
			return Taxonomy{}, err
		}
	}
	for _, name := range t.Tally {
		if !seen[name] {
			return Taxonomy{}, perr.InvalidArgf("taxonomy tally names unknown field %q", name)
		}
	}
	return t, nil
}

func (f *Field) check() error {
	switch f.Kind {
	case KindInt:
		if f.Min > f.Max {
			return perr.InvalidArgf("taxonomy field %s: min %d > max %d", f.Name, f.Min, f.Max)
		}
		d, err := strconv.Atoi(strings.TrimSpace(f.Default))
		if err != nil {
			return perr.InvalidArgf("taxonomy field %s: default %q is not an int", f.Name, f.Default)
		}
		f.defInt = min(max(d, f.Min), f.Max)
	case KindEnum:
		if len(f.Values) == 0 {
			return perr.InvalidArgf("taxonomy field %s: enum without values", f.Name)
		}
		if f.Default == "" {
			return perr.InvalidArgf("taxonomy field %s: enum needs a default", f.Name)
		}
	case KindText:
	default:
		return perr.InvalidArgf("taxonomy field %s: unknown kind %q", f.Name, f.Kind)
	}
	return nil
}

// Field returns the declared field by name
func (t Taxonomy) Field(name string) (Field, bool) {
	i := slices.IndexFunc(t.Fields, func(f Field) bool { return f.Name == name })
	if i < 0 {
		return Field{}, false
	}
	return t.Fields[i], true
}

// Names returns field names in declaration order
func (t Taxonomy) Names() []string {
	out := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		out[i] = f.Name
	}
	return out
}
