// Package domain holds the acquisition record, run statistics and ports
package domain

import (
	"time"

	"repoharvest/internal/core/sampler"
	pstrings "repoharvest/internal/platform/strings"
)

// Candidate is one line of the candidate log. Immutable once appended;
// ID is unique within the log.
type Candidate struct {
	ID            int64        `json:"id"              validate:"gt=0"`
	RepoName      string       `json:"repo_name"       validate:"required,owner_repo"`
	RepoURL       string       `json:"repo_url"        validate:"required,url"`
	Stars         int          `json:"stars"           validate:"gte=0"`
	Description   string       `json:"description"`
	Language      string       `json:"language"`
	Topics        []string     `json:"topics"`
	CreatedAt     time.Time    `json:"created_at"`
	PushedAt      time.Time    `json:"pushed_at"`
	Tier          sampler.Tier `json:"tier"            validate:"oneof=silent signal"`
	SizeKB        int64        `json:"size_kb"         validate:"gte=0"`
	ForksCount    int          `json:"forks_count"     validate:"gte=0"`
	OpenIssues    int          `json:"open_issues"     validate:"gte=0"`
	OwnerLogin    string       `json:"owner_login"     validate:"required"`
	OwnerType     string       `json:"owner_type"`
	ReadmeContent *string      `json:"readme_content"`
	AcquiredAt    time.Time    `json:"acquired_at"`
}

// HasReadme reports whether enrichment text is present and non-blank
func (c Candidate) HasReadme() bool {
	return !pstrings.Blank(pstrings.Deref(c.ReadmeContent))
}

// Reject reasons that do not come from the noise filter
const (
	ReasonSampledOut = "sampled_out"
	ReasonInvalid    = "invalid_record"
)

// Stats is the run summary
type Stats struct {
	Days           int            `json:"days"`
	Pages          int            `json:"pages"`
	PagesAbandoned int            `json:"pages_abandoned"`
	RateLimitWaits int            `json:"rate_limit_waits"`
	Scanned        int            `json:"scanned"`
	Duplicates     int            `json:"duplicates"`
	Kept           int            `json:"kept"`
	KeptByTier     map[string]int `json:"kept_by_tier"`
	Rejected       map[string]int `json:"rejected"`
	ReadmeOK       int            `json:"readme_ok"`
	ReadmeMissing  int            `json:"readme_missing"`
	ReadmeFailed   int            `json:"readme_failed"`
	Resumed        int            `json:"resumed"`
	Total          int            `json:"total"`
	ReachedTarget  bool           `json:"reached_target"`
	Interrupted    bool           `json:"interrupted"`
}

// NewStats returns Stats with its maps allocated
func NewStats() Stats {
	return Stats{KeptByTier: map[string]int{}, Rejected: map[string]int{}}
}

// RejectedTotal sums every reject reason
func (s Stats) RejectedTotal() int {
	n := 0
	for _, v := range s.Rejected {
		n += v
	}
	return n
}
