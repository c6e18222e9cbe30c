package noise

import (
	"bytes"
	_ "embed"
	"os"
	"regexp"

	"repoharvest/internal/core/normalize"
	perr "repoharvest/internal/platform/errors"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rules is the data form of the filter, one field per predicate family
type Rules struct {
	OwnerBlacklist    []string          `yaml:"owner_blacklist"`
	NamePatterns      []string          `yaml:"name_patterns"`
	KeywordCategories []KeywordCategory `yaml:"keyword_categories"`
	DescKeywords      []string          `yaml:"desc_keywords"`
	TopicBlacklist    []string          `yaml:"topic_blacklist"`
}

// KeywordCategory is a named keyword list matched against name and description
type KeywordCategory struct {
	Code     Code     `yaml:"code"`
	Keywords []string `yaml:"keywords"`
}

// DefaultRules returns the embedded rule pack
func DefaultRules() Rules {
	r, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic("noise: embedded rules.yaml is invalid: " + err.Error())
	}
	return r
}

// ParseRules decodes a YAML rule pack; unknown keys are rejected
func ParseRules(b []byte) (Rules, error) {
	var r Rules
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return Rules{}, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "noise rules decode")
	}
	for _, kc := range r.KeywordCategories {
		if kc.Code == "" {
			return Rules{}, perr.InvalidArgf("noise rules: keyword category without code")
		}
	}
	return r, nil
}

// LoadRules reads a rule pack from path, or returns the embedded pack when path is empty
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "noise rules read %s", path)
	}
	return ParseRules(b)
}

type compiledCategory struct {
	code     Code
	keywords []string
}

type namePattern struct {
	src string
	re  *regexp.Regexp
}

type compiled struct {
	owners   map[string]struct{}
	patterns []namePattern
	cats     []compiledCategory
	desc     []string
	topics   map[string]struct{}
}

func compile(r Rules) (compiled, error) {
	c := compiled{
		owners: make(map[string]struct{}, len(r.OwnerBlacklist)),
		topics: make(map[string]struct{}, len(r.TopicBlacklist)),
	}
	for _, o := range r.OwnerBlacklist {
		c.owners[normalize.Fold(o)] = struct{}{}
	}
	for _, p := range r.NamePatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return compiled{}, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "noise name pattern %q", p)
		}
		c.patterns = append(c.patterns, namePattern{src: p, re: re})
	}
	for _, kc := range r.KeywordCategories {
		c.cats = append(c.cats, compiledCategory{code: kc.Code, keywords: foldAll(kc.Keywords)})
	}
	c.desc = foldAll(r.DescKeywords)
	for _, t := range r.TopicBlacklist {
		c.topics[normalize.Fold(t)] = struct{}{}
	}
	return c, nil
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if f := normalize.Fold(s); f != "" {
			out = append(out, f)
		}
	}
	return out
}
