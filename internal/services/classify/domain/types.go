// Package domain holds the classification records, the field taxonomy,
// the run phases and the ports the worker pool depends on
package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"repoharvest/internal/core/normalize"
	perr "repoharvest/internal/platform/errors"
	pstrings "repoharvest/internal/platform/strings"
	harvest "repoharvest/internal/services/harvest/domain"
)

// Result is one line of the result log; at most one per RepoID
type Result struct {
	RepoID       int64     `json:"repo_id"`
	RepoName     string    `json:"repo_name"`
	RepoURL      string    `json:"repo_url"`
	Stars        int       `json:"stars"`
	Language     string    `json:"language"`
	Topics       []string  `json:"topics"`
	Analysis     Analysis  `json:"analysis"`
	TokensInput  int       `json:"tokens_input"`
	TokensOutput int       `json:"tokens_output"`
	Cost         float64   `json:"cost"`
	Retries      int       `json:"retries"`
	Model        string    `json:"model"`
	RunID        string    `json:"run_id"`
	AnalyzedAt   time.Time `json:"analyzed_at"`
}

// Failure is one line of the failure log
type Failure struct {
	RepoID   int64     `json:"repo_id"`
	RepoName string    `json:"repo_name"`
	Code     string    `json:"code"`
	Error    string    `json:"error"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failed_at"`
	RunID    string    `json:"run_id"`
}

// Progress is the checkpoint document
type Progress struct {
	ProcessedIDs []int64   `json:"processed_ids"`
	FailedIDs    []int64   `json:"failed_ids"`
	TokensInput  int64     `json:"tokens_input"`
	TokensOutput int64     `json:"tokens_output"`
	TotalCost    float64   `json:"total_cost"`
	LastUpdate   time.Time `json:"last_update"`
	RunID        string    `json:"run_id"`
}

// Phase is the classification run state
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoadingProgress
	PhaseSubmitting
	PhaseDraining
	PhaseCheckpointing
	PhaseDone
)

var phaseNames = [...]string{"idle", "loading_progress", "submitting", "draining", "checkpointing", "done"}

// String returns the snake_case phase name
func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase_%d", int(p))
	}
	return phaseNames[p]
}

// MarshalText renders the phase name in JSON
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText parses a phase name
func (p *Phase) UnmarshalText(b []byte) error {
	i := slices.Index(phaseNames[:], string(b))
	if i < 0 {
		return perr.InvalidArgf("unknown phase %q", b)
	}
	*p = Phase(i)
	return nil
}

// Snapshot is the live or final view of a run
type Snapshot struct {
	RunID          string                    `json:"run_id"`
	Phase          Phase                     `json:"phase"`
	Total          int                       `json:"total"`
	Pending        int                       `json:"pending"`
	Succeeded      int                       `json:"succeeded"`
	Failed         int                       `json:"failed"`
	Skipped        int                       `json:"skipped"`
	Processed      int                       `json:"processed"`
	TokensInput    int64                     `json:"tokens_input"`
	TokensOutput   int64                     `json:"tokens_output"`
	Cost           float64                   `json:"cost"`
	Budget         float64                   `json:"budget"`
	OverBudget     bool                      `json:"over_budget"`
	Interrupted    bool                      `json:"interrupted"`
	FailuresByCode map[string]int            `json:"failures_by_code"`
	Tallies        map[string]map[string]int `json:"tallies"`
	StartedAt      time.Time                 `json:"started_at"`
	LastCheckpoint time.Time                 `json:"last_checkpoint"`
}

// NoContent is the preview text used when a record carries no README
const NoContent = "(no README content)"

// BuildPrompt renders the per-record request: basic metadata then a README
// preview of at most previewRunes runes, suffixed with "..." when cut
func BuildPrompt(c harvest.Candidate, previewRunes int) string {
	preview := NoContent
	if c.HasReadme() {
		preview = pstrings.Deref(c.ReadmeContent)
		if previewRunes > 0 {
			if cut := normalize.Truncate(preview, previewRunes); len(cut) < len(preview) {
				preview = cut + "..."
			}
		}
	}
	var b strings.Builder
	b.WriteString("Analyse the following GitHub repository.\n\n[Basic info]\n")
	fmt.Fprintf(&b, "Name: %s\n", pstrings.Or(c.RepoName, "N/A"))
	fmt.Fprintf(&b, "Description: %s\n", pstrings.Or(c.Description, "N/A"))
	fmt.Fprintf(&b, "Language: %s\n", pstrings.Or(c.Language, "N/A"))
	fmt.Fprintf(&b, "Topics: %s\n", strings.Join(c.Topics, ", "))
	fmt.Fprintf(&b, "Stars: %d\n\n", c.Stars)
	b.WriteString("[README preview]\n")
	b.WriteString(preview)
	b.WriteString("\n\nReply with the JSON analysis only.")
	return b.String()
}
