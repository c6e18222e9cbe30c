package noise

import (
	"testing"

	perr "repoharvest/internal/platform/errors"
	kit "repoharvest/internal/platform/testkit"
)

func base() Subject {
	return Subject{
		Owner:       "alice",
		Name:        "budget-tracker",
		Description: "Track household spending with AI",
		Topics:      []string{"nextjs", "ai"},
		SizeKB:      120,
	}
}

func TestCheck_Table(t *testing.T) {
	f := Default()

	tests := []struct {
		name   string
		mut    func(*Subject)
		reject bool
		code   Code
		detail string
	}{
		{"clean app passes", func(*Subject) {}, false, "", ""},
		{"fork", func(s *Subject) { s.Fork = true }, true, CodeFork, ""},
		{"empty", func(s *Subject) { s.SizeKB = 0 }, true, CodeEmpty, ""},
		{"owner exact match case folded", func(s *Subject) { s.Owner = "Microsoft" }, true, CodeOwnerBlacklist, "microsoft"},
		{"big-tech owner", func(s *Subject) { s.Owner = "google" }, true, CodeOwnerBlacklist, "google"},
		{"single letter owner", func(s *Subject) { s.Owner = "X" }, true, CodeOwnerBlacklist, "x"},
		{"owner substring is not a match", func(s *Subject) { s.Owner = "googler" }, false, "", ""},
		{"library suffix", func(s *Subject) { s.Name = "payments-sdk" }, true, CodeNamePattern, "[-_]sdk$"},
		{"framework prefix", func(s *Subject) { s.Name = "FrameworkX" }, true, CodeNamePattern, "^framework"},
		{"education by name", func(s *Subject) { s.Name = "ml-homework" }, true, CodeEducation, "homework"},
		{"algorithm by description", func(s *Subject) { s.Description = "My LeetCode solutions" }, true, CodeAlgorithm, "leetcode"},
		{"config by name", func(s *Subject) { s.Name = "dotfiles" }, true, CodeConfig, "dotfiles"},
		{"awesome by description", func(s *Subject) { s.Description = "A curated list of agents" }, true, CodeAwesome, "curated list"},
		{"tutorial by description", func(s *Subject) { s.Description = "Starter template for Next.js apps" }, true, CodeTutorial, "starter template"},
		{"desc keyword", func(s *Subject) { s.Description = "Official client" }, true, CodeDescKeyword, "official"},
		{"desc keyword folded from fullwidth", func(s *Subject) {
			s.Description = "ＯＦＦＩＣＩＡＬ build"
		}, true, CodeDescKeyword, "official"},
		{"topic blacklist", func(s *Subject) { s.Topics = []string{"AI", "Tutorial"} }, true, CodeTopicBlacklist, "tutorial"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := base()
			tc.mut(&s)
			v := f.Check(s)
			if v.Reject != tc.reject {
				t.Fatalf("Reject = %v, want %v (reason %s)", v.Reject, tc.reject, v.Reason)
			}
			if v.Reason.Code != tc.code || v.Reason.Detail != tc.detail {
				t.Fatalf("Reason = %+v, want %s:%s", v.Reason, tc.code, tc.detail)
			}
		})
	}
}

func TestCheck_FirstMatchWins(t *testing.T) {
	f := Default()

	// every predicate would match; fork is checked first
	s := Subject{Fork: true, SizeKB: 0, Owner: "google", Name: "lib-homework", Topics: []string{"dotfiles"}}
	if v := f.Check(s); v.Reason.Code != CodeFork {
		t.Fatalf("want fork, got %s", v.Reason)
	}

	// education is ordered before algorithm
	s = base()
	s.Name = "leetcode-homework"
	if v := f.Check(s); v.Reason.Code != CodeEducation || v.Reason.Detail != "homework" {
		t.Fatalf("want education:homework, got %s", v.Reason)
	}

	// a name pattern beats a description keyword
	s = base()
	s.Name = "core-engine"
	s.Description = "deprecated"
	if v := f.Check(s); v.Reason.Code != CodeNamePattern {
		t.Fatalf("want name_pattern, got %s", v.Reason)
	}
}

func TestCheck_IsPure(t *testing.T) {
	f := Default()
	s := base()
	s.Description = "Official client"
	a, b := f.Check(s), f.Check(s)
	if a != b {
		t.Fatalf("Check not deterministic: %+v vs %+v", a, b)
	}
}

func TestReasonString(t *testing.T) {
	if got := (Reason{Code: CodeFork}).String(); got != "fork" {
		t.Fatalf("String = %q", got)
	}
	if got := (Reason{Code: CodeConfig, Detail: "backup"}).String(); got != "config:backup" {
		t.Fatalf("String = %q", got)
	}
}

func TestParseRules_CustomCategory(t *testing.T) {
	r, err := ParseRules([]byte(`
keyword_categories:
  - code: crypto
    keywords: [token airdrop]
`))
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	f, err := New(r)
	if err != nil {
		t.Fatal(err)
	}
	s := base()
	s.Description = "Token Airdrop bot"
	if v := f.Check(s); v.Reason.Code != "crypto" {
		t.Fatalf("want crypto, got %s", v.Reason)
	}
}

func TestParseRules_Errors(t *testing.T) {
	if _, err := ParseRules([]byte("owners: [a]\n")); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("unknown key should be rejected, got %v", err)
	}
	if _, err := ParseRules([]byte("keyword_categories:\n  - keywords: [a]\n")); err == nil {
		t.Fatalf("category without code should be rejected")
	}
	if _, err := New(Rules{NamePatterns: []string{"(unclosed"}}); err == nil {
		t.Fatalf("bad regexp should fail compile")
	}
}

func TestLoadRules(t *testing.T) {
	r, err := LoadRules("")
	if err != nil || len(r.OwnerBlacklist) == 0 || len(r.KeywordCategories) != 5 {
		t.Fatalf("embedded rules: %+v err=%v", r, err)
	}
	p := kit.WriteFile(t, "rules.yaml", "topic_blacklist: [crypto]\n")
	r, err = LoadRules(p)
	if err != nil || len(r.TopicBlacklist) != 1 {
		t.Fatalf("file rules: %+v err=%v", r, err)
	}
	if _, err := LoadRules(p + ".missing"); err == nil {
		t.Fatalf("missing file should error")
	}
}
