// Package noise rejects repositories that are not independent application
// projects: forks, empty repos, big-vendor owners, libraries by name,
// coursework, algorithm drills, dotfiles, curated lists, tutorials.
//
// Predicates run in a fixed order and the first match wins, so a rejected
// repo carries exactly one Reason even when several rules would match.
package noise

import (
	"strings"

	"repoharvest/internal/core/normalize"
)

// Code names the predicate that rejected a repository
type Code string

// Built-in codes; keyword categories add their own from the rule pack
const (
	CodeFork           Code = "fork"
	CodeEmpty          Code = "empty_repo"
	CodeOwnerBlacklist Code = "owner_blacklist"
	CodeNamePattern    Code = "name_pattern"
	CodeEducation      Code = "education"
	CodeAlgorithm      Code = "algorithm"
	CodeConfig         Code = "config"
	CodeAwesome        Code = "awesome"
	CodeTutorial       Code = "tutorial"
	CodeDescKeyword    Code = "desc_keyword"
	CodeTopicBlacklist Code = "topic_blacklist"
)

// Reason is the first matching rule: its code and the keyword, pattern, owner or topic that hit
type Reason struct {
	Code   Code   `json:"code"`
	Detail string `json:"detail"`
}

// String renders code:detail
func (r Reason) String() string {
	if r.Detail == "" {
		return string(r.Code)
	}
	return string(r.Code) + ":" + r.Detail
}

// Verdict is the outcome of Check
type Verdict struct {
	Reject bool
	Reason Reason
}

// Subject is the metadata the filter looks at
type Subject struct {
	Owner       string
	Name        string
	Description string
	Topics      []string
	Fork        bool
	SizeKB      int64
}

// Filter is immutable after New and safe for concurrent use
type Filter struct {
	c compiled
}

// New compiles rules into a Filter
func New(r Rules) (*Filter, error) {
	c, err := compile(r)
	if err != nil {
		return nil, err
	}
	return &Filter{c: c}, nil
}

// Default returns a Filter over the embedded rule pack
func Default() *Filter {
	f, err := New(DefaultRules())
	if err != nil {
		panic("noise: embedded rules do not compile: " + err.Error())
	}
	return f
}

// Check evaluates s. It has no side effects.
func (f *Filter) Check(s Subject) Verdict {
	if s.Fork {
		return reject(CodeFork, "")
	}
	if s.SizeKB == 0 {
		return reject(CodeEmpty, "")
	}

	owner := normalize.Fold(s.Owner)
	if _, ok := f.c.owners[owner]; ok {
		return reject(CodeOwnerBlacklist, owner)
	}

	for _, p := range f.c.patterns {
		if p.re.MatchString(s.Name) {
			return reject(CodeNamePattern, p.src)
		}
	}

	name := normalize.Fold(s.Name)
	desc := normalize.Fold(s.Description)
	for _, cat := range f.c.cats {
		for _, kw := range cat.keywords {
			if strings.Contains(name, kw) || strings.Contains(desc, kw) {
				return reject(cat.code, kw)
			}
		}
	}

	for _, kw := range f.c.desc {
		if strings.Contains(desc, kw) {
			return reject(CodeDescKeyword, kw)
		}
	}

	for _, t := range s.Topics {
		ft := normalize.Fold(t)
		if _, ok := f.c.topics[ft]; ok {
			return reject(CodeTopicBlacklist, ft)
		}
	}
	return Verdict{}
}

func reject(c Code, detail string) Verdict {
	return Verdict{Reject: true, Reason: Reason{Code: c, Detail: detail}}
}
