package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	kit "repoharvest/internal/platform/testkit"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"trace", "trace"},
		{"debug", "debug"},
		{"info", "info"},
		{"warn", "warn"},
		{"warning", "warn"},
		{"error", "error"},
		{"fatal", "fatal"},
		{"panic", "panic"},
		{"", "info"},
		{"  loud  ", "info"},
	}
	for _, c := range cases {
		if got := ParseLevel(c.in).String(); got != c.want {
			t.Fatalf("ParseLevel(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestInit_NamedAndRunFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{
		Level:        "debug",
		Format:       "json",
		Service:      "harvest-test",
		Writer:       &buf,
		StaticFields: map[string]string{"build": "test"},
	})

	Named("walker").Info().Msg("named-msg")

	ctx := WithRun(context.Background(), "run-42", "classify")
	C(ctx).Info().Msg("run-msg")
	C(context.Background()).Info().Msg("bare-msg")

	out := buf.String()
	if !strings.Contains(out, "named-msg") {
		// another test may have initialised the root first; fields below need our writer
		t.Skip("root logger initialised elsewhere")
	}
	kit.MustContain(t, out, `"component":"walker"`)
	kit.MustContain(t, out, `"run_id":"run-42"`)
	kit.MustContain(t, out, `"stage":"classify"`)
	kit.MustContain(t, out, `"service":"harvest-test"`)
	kit.MustContain(t, out, `"build":"test"`)
	kit.MustContain(t, out, "bare-msg")
}

func TestRunID(t *testing.T) {
	if got := RunID(context.Background()); got != "" {
		t.Fatalf("RunID(empty) = %q", got)
	}
	ctx := WithRun(context.Background(), "abc", "")
	if got := RunID(ctx); got != "abc" {
		t.Fatalf("RunID = %q, want abc", got)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_SERVICE", "crawl")
	t.Setenv("LOG_CALLER", "yes")

	opt := FromEnv()
	if opt.Level != "warn" || opt.Format != "json" || opt.Service != "crawl" || !opt.WithCaller {
		t.Fatalf("FromEnv mismatch: %+v", opt)
	}
}
