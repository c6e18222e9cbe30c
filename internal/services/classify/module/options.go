package module

import (
	"time"

	"repoharvest/internal/platform/config"
	"repoharvest/internal/platform/validate"
)

// Options holds configuration for the classification stage
type Options struct {
	Input    string `env:"CORE_CLASSIFY_INPUT"    validate:"required"`
	Results  string `env:"CORE_CLASSIFY_RESULTS"  validate:"required"`
	Failures string `env:"CORE_CLASSIFY_FAILURES" validate:"required"`
	Progress string `env:"CORE_CLASSIFY_PROGRESS" validate:"required"`

	Workers         int           `env:"CORE_CLASSIFY_WORKERS"          validate:"min=1,max=64"`
	RequestDelay    time.Duration `env:"CORE_CLASSIFY_REQUEST_DELAY"    validate:"gte=0"`
	MaxRetries      int           `env:"CORE_CLASSIFY_MAX_RETRIES"      validate:"min=1"`
	RetryBase       time.Duration `env:"CORE_CLASSIFY_RETRY_BASE"       validate:"gte=0"`
	CheckpointEvery int           `env:"CORE_CLASSIFY_CHECKPOINT_EVERY" validate:"min=1"`
	PreviewRunes    int           `env:"CORE_CLASSIFY_PREVIEW_RUNES"    validate:"gte=0"`
	SkipEmpty       bool          `env:"CORE_CLASSIFY_SKIP_EMPTY_CONTENT"`

	RateIn         float64 `env:"CORE_CLASSIFY_RATE_IN"           validate:"gte=0"`
	RateOut        float64 `env:"CORE_CLASSIFY_RATE_OUT"          validate:"gte=0"`
	Budget         float64 `env:"CORE_CLASSIFY_BUDGET"            validate:"gte=0"`
	EstCostPerItem float64 `env:"CORE_CLASSIFY_EST_COST_PER_ITEM" validate:"gte=0"`

	MirrorTimeout time.Duration `env:"CORE_CLASSIFY_MIRROR_TIMEOUT" validate:"gt=0"`

	Taxonomy   string   `env:"CORE_CLASSIFY_TAXONOMY"`
	StatusAddr string   `env:"CORE_CLASSIFY_STATUS_ADDR" validate:"omitempty,hostname_port"`
	StatusCORS []string `env:"CORE_CLASSIFY_STATUS_CORS" validate:"dive,url"`

	// RunID is stamped into every record; generated when empty
	RunID string

	Infer InferOptions
}

// InferOptions configures the chat-completions client
type InferOptions struct {
	APIKey      string        `env:"INFER_API_KEY"     validate:"required"`
	Endpoint    string        `env:"INFER_ENDPOINT"    validate:"omitempty,url"`
	Model       string        `env:"INFER_MODEL"`
	Temperature float64       `env:"INFER_TEMPERATURE" validate:"gte=0,lte=2"`
	MaxTokens   int           `env:"INFER_MAX_TOKENS"  validate:"min=1"`
	Timeout     time.Duration `env:"INFER_TIMEOUT"     validate:"gte=0"`
	JSONMode    bool          `env:"INFER_JSON_MODE"`
}

// FromConfig reads the classify options with the CORE_CLASSIFY_ and INFER_ prefixes
func FromConfig(cfg config.Conf) Options {
	cl := cfg.Prefix("CORE_CLASSIFY_")
	in := cfg.Prefix("INFER_")
	return Options{
		Input:           cl.MayString("INPUT", "data/candidates.ndjson"),
		Results:         cl.MayString("RESULTS", "data/results.ndjson"),
		Failures:        cl.MayString("FAILURES", "data/failed.ndjson"),
		Progress:        cl.MayString("PROGRESS", "data/progress.json"),
		Workers:         cl.MayInt("WORKERS", 5),
		RequestDelay:    cl.MayDuration("REQUEST_DELAY", 500*time.Millisecond),
		MaxRetries:      cl.MayInt("MAX_RETRIES", 3),
		RetryBase:       cl.MayDuration("RETRY_BASE", 2*time.Second),
		CheckpointEvery: cl.MayInt("CHECKPOINT_EVERY", 10),
		PreviewRunes:    cl.MayInt("PREVIEW_RUNES", 3000),
		SkipEmpty:       cl.MayBool("SKIP_EMPTY_CONTENT", true),
		RateIn:          cl.MayFloat64("RATE_IN", 1),
		RateOut:         cl.MayFloat64("RATE_OUT", 2),
		Budget:          cl.MayFloat64("BUDGET", 50),
		EstCostPerItem:  cl.MayFloat64("EST_COST_PER_ITEM", 0.03),
		MirrorTimeout:   cl.MayDuration("MIRROR_TIMEOUT", 10*time.Second),
		Taxonomy:        cl.MayString("TAXONOMY", ""),
		StatusAddr:      cl.MayString("STATUS_ADDR", ""),
		StatusCORS:      cl.MayCSV("STATUS_CORS", nil),
		Infer: InferOptions{
			APIKey:      in.MayString("API_KEY", ""),
			Endpoint:    in.MayString("ENDPOINT", ""),
			Model:       in.MayString("MODEL", ""),
			Temperature: in.MayFloat64("TEMPERATURE", 0.3),
			MaxTokens:   in.MayInt("MAX_TOKENS", 800),
			Timeout:     in.MayDuration("TIMEOUT", 60*time.Second),
			JSONMode:    in.MayBool("JSON_MODE", false),
		},
	}
}

// Validate reports every invalid option at once
func (o Options) Validate() error { return validate.Struct(o) }
