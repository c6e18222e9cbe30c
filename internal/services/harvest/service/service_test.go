package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"repoharvest/internal/adapters/github"
	"repoharvest/internal/core/dedup"
	"repoharvest/internal/core/noise"
	"repoharvest/internal/core/sampler"
	perr "repoharvest/internal/platform/errors"
	"repoharvest/internal/services/harvest/domain"
	"repoharvest/internal/services/harvest/ingest"
)

type memSink struct {
	recs []domain.Candidate
	err  error
}

func (m *memSink) Append(v any) error {
	if m.err != nil {
		return m.err
	}
	m.recs = append(m.recs, v.(domain.Candidate))
	return nil
}

type fakeReadme struct {
	calls int
	fn    func(call int, owner, repo string) (string, error)
}

func (f *fakeReadme) Readme(_ context.Context, owner, repo string) (string, error) {
	f.calls++
	return f.fn(f.calls-1, owner, repo)
}

func okReadme(text string) *fakeReadme {
	return &fakeReadme{fn: func(int, string, string) (string, error) { return text, nil }}
}

var day = time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	search *fakeSearch
	sink   *memSink
	sleeps *sleepRec
	seen   *dedup.Index
}

func newFixture(t *testing.T, page []github.Repo, rd *fakeReadme, rate float64, cfg Config) *fixture {
	t.Helper()
	fs := &fakeSearch{fn: func(int, github.SearchQuery) (github.SearchPage, error) {
		return github.SearchPage{TotalCount: len(page), Items: page}, nil
	}}
	w, rec := newTestWalker(fs, 100, 10)
	smp, err := sampler.New(sampler.Options{Threshold: 20, Rate: rate, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Start.IsZero() {
		cfg.Start, cfg.End = day, day
	}
	seen := dedup.New()
	sink := &memSink{}
	var rf domain.ReadmeFetcher
	if rd != nil {
		rf = rd
		cfg.FetchReadme = true
	}
	svc := New(w, rf, noise.Default(), smp, seen, sink, ingest.NewReadmeCleaner(true, 0), cfg)
	svc.sleep = rec.sleep
	svc.now = func() time.Time { return day.Add(36 * time.Hour) }
	return &fixture{svc: svc, search: fs, sink: sink, sleeps: rec, seen: seen}
}

func TestDayQuery(t *testing.T) {
	q := DayQuery(day, Config{SizeRange: "50..80000", StarsRange: "0..3000", ExtraTerms: []string{"language:go"}})
	want := "created:2025-03-09 size:50..80000 pushed:>2025-03-10 stars:0..3000 language:go"
	if q.Q != want || q.Sort != "updated" || q.Order != "desc" {
		t.Fatalf("DayQuery = %+v", q)
	}
}

func TestRun_FiltersSamplesAndAppends(t *testing.T) {
	fork := repoN(1)
	fork.Fork = true
	vendor := repoN(2)
	vendor.Owner.Login = "Microsoft"
	silent := repoN(3)
	silent.Stargazers = 4
	kept := repoN(4)
	dup := repoN(5)

	f := newFixture(t, []github.Repo{fork, vendor, silent, kept, dup}, okReadme("<p>Hello <b>world</b></p>"), 0, Config{})
	f.seen.Add(5)

	st, err := f.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Scanned != 5 || st.Kept != 1 || st.Duplicates != 1 || st.Resumed != 1 || st.Total != 2 {
		t.Fatalf("stats = %+v", st)
	}
	for reason, n := range map[string]int{"fork": 1, "owner_blacklist": 1, domain.ReasonSampledOut: 1} {
		if st.Rejected[reason] != n {
			t.Fatalf("rejected[%s] = %d in %v", reason, st.Rejected[reason], st.Rejected)
		}
	}
	if len(f.sink.recs) != 1 {
		t.Fatalf("appended %d records", len(f.sink.recs))
	}
	c := f.sink.recs[0]
	if c.ID != 4 || c.Tier != sampler.TierSignal || c.OwnerLogin != "alice" || !c.HasReadme() {
		t.Fatalf("candidate = %+v", c)
	}
	if *c.ReadmeContent != "Hello world" {
		t.Fatalf("readme = %q", *c.ReadmeContent)
	}
	if !c.AcquiredAt.Equal(day.Add(36*time.Hour)) || c.Topics == nil {
		t.Fatalf("acquired_at/topics = %v %v", c.AcquiredAt, c.Topics)
	}
	if !f.seen.Has(4) {
		t.Fatalf("kept id not indexed")
	}
}

func TestRun_SilentTierKeptWhenSampled(t *testing.T) {
	r := repoN(9)
	r.Stargazers = 0
	f := newFixture(t, []github.Repo{r}, nil, 1, Config{})
	st, err := f.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.KeptByTier[string(sampler.TierSilent)] != 1 || f.sink.recs[0].ReadmeContent != nil {
		t.Fatalf("stats = %+v recs = %+v", st, f.sink.recs)
	}
}

func TestRun_ReadmeFailureStillSaves(t *testing.T) {
	rd := &fakeReadme{fn: func(int, string, string) (string, error) {
		return "", perr.Unavailablef("github status 503")
	}}
	f := newFixture(t, []github.Repo{repoN(1)}, rd, 0, Config{})
	st, err := f.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.ReadmeFailed != 1 || len(f.sink.recs) != 1 || f.sink.recs[0].ReadmeContent != nil {
		t.Fatalf("stats = %+v", st)
	}
	if rd.calls != 3 {
		t.Fatalf("readme attempts = %d", rd.calls)
	}
}

func TestRun_ReadmeRateLimitWaitsThenSucceeds(t *testing.T) {
	rd := &fakeReadme{fn: func(call int, _, _ string) (string, error) {
		if call == 0 {
			return "", rateLimited(0)
		}
		return "# App", nil
	}}
	f := newFixture(t, []github.Repo{repoN(1)}, rd, 0, Config{})
	st, err := f.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.ReadmeOK != 1 || st.RateLimitWaits != 1 || st.ReadmeFailed != 0 {
		t.Fatalf("stats = %+v", st)
	}
	if f.sleeps.got[0] != 60*time.Second {
		t.Fatalf("sleeps = %v", f.sleeps.got)
	}
}

func TestRun_MissingReadmeIsNull(t *testing.T) {
	f := newFixture(t, []github.Repo{repoN(1)}, okReadme("  \n "), 0, Config{})
	st, err := f.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.ReadmeMissing != 1 || f.sink.recs[0].ReadmeContent != nil {
		t.Fatalf("stats = %+v", st)
	}
}

func TestRun_StopsAtTarget(t *testing.T) {
	f := newFixture(t, items(5, 10), nil, 0, Config{TargetTotal: 3})
	f.seen.Add(1)
	st, err := f.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Kept != 2 || st.Total != 3 || !st.ReachedTarget || st.Scanned != 2 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestRun_AlreadyAtTargetDoesNothing(t *testing.T) {
	f := newFixture(t, items(5, 10), nil, 0, Config{TargetTotal: 1})
	f.seen.Add(1)
	st, err := f.svc.Run(context.Background())
	if err != nil || !st.ReachedTarget || len(f.search.calls) != 0 {
		t.Fatalf("err=%v stats=%+v calls=%d", err, st, len(f.search.calls))
	}
}

func TestRun_SinkFailureIsFatal(t *testing.T) {
	f := newFixture(t, items(3, 10), nil, 0, Config{})
	f.sink.err = perr.IOf("disk full")
	_, err := f.svc.Run(context.Background())
	if !perr.IsCode(err, perr.ErrorCodeIO) {
		t.Fatalf("err = %v", err)
	}
}

func TestRun_WalksEveryDayAndPauses(t *testing.T) {
	cfg := Config{
		Start:      day,
		End:        day.AddDate(0, 0, 2),
		PauseEvery: 2,
		PauseScan:  500 * time.Millisecond,
		PauseDay:   time.Second,
	}
	f := newFixture(t, items(3, 10), nil, 0, cfg)
	st, err := f.svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Days != 3 || len(f.search.calls) != 3 {
		t.Fatalf("days=%d calls=%d", st.Days, len(f.search.calls))
	}
	for i, q := range f.search.calls {
		want := "created:" + day.AddDate(0, 0, i).Format(time.DateOnly)
		if !strings.HasPrefix(q.Q, want) {
			t.Fatalf("query %d = %q", i, q.Q)
		}
	}
	// 9 scanned: 3 new then 6 duplicates; pauses at 2,4,6,8 plus one per day
	var short, daily int
	for _, d := range f.sleeps.got {
		switch d {
		case 500 * time.Millisecond:
			short++
		case time.Second:
			daily++
		}
	}
	if st.Scanned != 9 || st.Duplicates != 6 || short != 4 || daily != 3 {
		t.Fatalf("stats=%+v short=%d daily=%d", st, short, daily)
	}
}

func TestRun_EmptyWindow(t *testing.T) {
	f := newFixture(t, nil, nil, 0, Config{Start: day, End: day.AddDate(0, 0, -1)})
	_, err := f.svc.Run(context.Background())
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("err = %v", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := newFixture(t, items(3, 10), nil, 0, Config{})
	st, err := f.svc.Run(ctx)
	if err != nil {
		t.Fatalf("interrupt should end the run cleanly, got %v", err)
	}
	if !st.Interrupted || st.Kept != 0 || len(f.sink.recs) != 0 {
		t.Fatalf("stats = %+v, appended %d", st, len(f.sink.recs))
	}
}
