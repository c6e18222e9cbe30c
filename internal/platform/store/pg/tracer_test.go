package pg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"repoharvest/internal/platform/logger"
)

func TestCompact(t *testing.T) {
	cases := map[string]string{
		"select 1":                     "select 1",
		"  select   1  ":               "select 1",
		"INSERT INTO c\n\t(repo_id)\r\n": "INSERT INTO c (repo_id)",
		"":                             "",
	}
	for in, want := range cases {
		if got := compact(in); got != want {
			t.Fatalf("compact(%q) = %q, want %q", in, got, want)
		}
	}
}

type line struct {
	Level     string  `json:"level"`
	ElapsedMS float64 `json:"elapsed_ms"`
	Slow      bool    `json:"slow"`
	SQL       string  `json:"sql"`
	Error     string  `json:"error"`
	Component string  `json:"component"`
	RunID     string  `json:"run_id"`
	Message   string  `json:"message"`
}

func TestTracer_LevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	tr := Tracer(zerolog.New(&buf).Level(zerolog.ErrorLevel))

	ctx := logger.WithRun(context.Background(), "run-7", "classify")
	ev := QueryEvent{SQL: "INSERT INTO classifications\n VALUES ($1)", Args: []any{1}, ElapsedUS: 2500, Err: errors.New("boom")}
	tr.OnQuery(ctx, ev)

	var got line
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
		t.Fatalf("unmarshal: %v raw=%s", err, buf.String())
	}
	if got.Level != "info" || got.Slow || got.ElapsedMS != 2.5 {
		t.Fatalf("info line = %+v", got)
	}
	if got.SQL != "INSERT INTO classifications VALUES ($1)" || got.Error != "boom" || got.Component != "pg" || got.RunID != "run-7" || got.Message != "pg query" {
		t.Fatalf("fields = %+v", got)
	}

	buf.Reset()
	ev.Slow = true
	tr.OnQuery(context.Background(), ev)
	got = line{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Level != "warn" || !got.Slow || got.RunID != "" {
		t.Fatalf("warn line = %+v", got)
	}
}
