package module

import (
	"time"

	"repoharvest/internal/core/sampler"
	"repoharvest/internal/platform/config"
	"repoharvest/internal/platform/validate"
)

// Options holds configuration for the acquisition stage
type Options struct {
	Start time.Time `env:"CORE_HARVEST_START_DATE" validate:"required"`
	End   time.Time `env:"CORE_HARVEST_END_DATE"`

	Output      string `env:"CORE_HARVEST_OUTPUT"       validate:"required"`
	TargetTotal int    `env:"CORE_HARVEST_TARGET_TOTAL" validate:"gte=0"`

	PerPage    int      `env:"CORE_HARVEST_PER_PAGE"  validate:"min=1,max=100"`
	MaxPages   int      `env:"CORE_HARVEST_MAX_PAGES" validate:"min=1,max=10"`
	SizeRange  string   `env:"CORE_HARVEST_SIZE_RANGE"`
	StarsRange string   `env:"CORE_HARVEST_STARS_RANGE"`
	ExtraTerms []string `env:"CORE_HARVEST_EXTRA_TERMS"`

	Threshold  int     `env:"CORE_HARVEST_THRESHOLD"   validate:"gte=0"`
	SampleRate float64 `env:"CORE_HARVEST_SAMPLE_RATE" validate:"gte=0,lte=1"`
	Seed       uint64  `env:"CORE_HARVEST_SEED"`

	PauseEvery int           `env:"CORE_HARVEST_PAUSE_EVERY" validate:"gte=0"`
	PauseScan  time.Duration `env:"CORE_HARVEST_PAUSE_SCAN"  validate:"gte=0"`
	PauseDay   time.Duration `env:"CORE_HARVEST_PAUSE_DAY"   validate:"gte=0"`

	NoiseRules     string `env:"CORE_HARVEST_NOISE_RULES"`
	FetchReadme    bool   `env:"CORE_HARVEST_FETCH_README"`
	StripHTML      bool   `env:"CORE_HARVEST_README_STRIP_HTML"`
	ReadmeMaxRunes int    `env:"CORE_HARVEST_README_MAX_RUNES" validate:"gte=0"`

	GitHub GitHubOptions
}

// GitHubOptions configures the search client
type GitHubOptions struct {
	Token   string        `env:"GITHUB_TOKEN"   validate:"required"`
	Tokens  []string      `env:"GITHUB_TOKENS"`
	APIURL  string        `env:"GITHUB_API_URL" validate:"omitempty,url"`
	Timeout time.Duration `env:"GITHUB_TIMEOUT" validate:"gte=0"`
}

// TokensCSV joins the primary token with any extras for round robin use
func (g GitHubOptions) TokensCSV() string {
	out := g.Token
	for _, t := range g.Tokens {
		if t != g.Token {
			out += "," + t
		}
	}
	return out
}

// FromConfig reads the harvest options with the CORE_HARVEST_ and GITHUB_ prefixes
func FromConfig(cfg config.Conf) Options {
	hv := cfg.Prefix("CORE_HARVEST_")
	gh := cfg.Prefix("GITHUB_")
	return Options{
		Start:          hv.MayDate("START_DATE", time.Time{}),
		End:            hv.MayDate("END_DATE", time.Time{}), // zero means today
		Output:         hv.MayString("OUTPUT", "data/candidates.ndjson"),
		TargetTotal:    hv.MayInt("TARGET_TOTAL", 5000),
		PerPage:        hv.MayInt("PER_PAGE", 100),
		MaxPages:       hv.MayInt("MAX_PAGES", 10),
		SizeRange:      hv.MayString("SIZE_RANGE", "50..80000"),
		StarsRange:     hv.MayString("STARS_RANGE", "0..3000"),
		ExtraTerms:     hv.MayCSV("EXTRA_TERMS", nil),
		Threshold:      hv.MayInt("THRESHOLD", sampler.DefaultThreshold),
		SampleRate:     hv.MayFloat64("SAMPLE_RATE", sampler.DefaultRate),
		Seed:           hv.MayUint64("SEED", 0),
		PauseEvery:     hv.MayInt("PAUSE_EVERY", 50),
		PauseScan:      hv.MayDuration("PAUSE_SCAN", 500*time.Millisecond),
		PauseDay:       hv.MayDuration("PAUSE_DAY", time.Second),
		NoiseRules:     hv.MayString("NOISE_RULES", ""),
		FetchReadme:    hv.MayBool("FETCH_README", true),
		StripHTML:      hv.MayBool("README_STRIP_HTML", true),
		ReadmeMaxRunes: hv.MayInt("README_MAX_RUNES", 0),
		GitHub: GitHubOptions{
			Token:   gh.MayString("TOKEN", ""),
			Tokens:  gh.MayCSV("TOKENS", nil),
			APIURL:  gh.MayString("API_URL", ""),
			Timeout: gh.MayDuration("TIMEOUT", 30*time.Second),
		},
	}
}

// Validate reports every invalid option at once
func (o Options) Validate() error { return validate.Struct(o) }
