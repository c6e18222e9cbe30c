package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"repoharvest/internal/core/sampler"
	"repoharvest/internal/platform/validate"
)

func valid() Candidate {
	return Candidate{
		ID:         7,
		RepoName:   "octo/hello",
		RepoURL:    "https://github.com/octo/hello",
		Tier:       sampler.TierSignal,
		OwnerLogin: "octo",
	}
}

func TestCandidate_ReadmeNullWhenAbsent(t *testing.T) {
	b, err := json.Marshal(valid())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"readme_content":null`) {
		t.Fatalf("absent readme not null: %s", b)
	}
	if valid().HasReadme() {
		t.Fatalf("HasReadme true without content")
	}
	s := ""
	c := valid()
	c.ReadmeContent = &s
	if c.HasReadme() {
		t.Fatalf("HasReadme true for empty content")
	}
}

func TestCandidate_Validation(t *testing.T) {
	if err := validate.Struct(valid()); err != nil {
		t.Fatalf("valid candidate rejected: %v", err)
	}
	bad := valid()
	bad.ID = 0
	bad.RepoName = "no-slash"
	bad.Tier = "gold"
	err := validate.Struct(bad)
	if err == nil {
		t.Fatalf("invalid candidate accepted")
	}
	for _, f := range []string{"id", "repo_name", "tier"} {
		if !strings.Contains(err.Error(), f) {
			t.Fatalf("error %q does not name %s", err, f)
		}
	}
}

func TestStats_RejectedTotal(t *testing.T) {
	s := NewStats()
	s.Rejected["fork"] = 2
	s.Rejected[ReasonSampledOut] = 5
	if s.RejectedTotal() != 7 {
		t.Fatalf("RejectedTotal = %d", s.RejectedTotal())
	}
}
