package service

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"repoharvest/internal/services/classify/domain"
)

// run is the state of one classification run; every field is guarded by mu
type run struct {
	mu sync.Mutex

	id        string
	phase     domain.Phase
	processed map[int64]struct{}
	failed    map[int64]struct{}
	tokensIn  int64
	tokensOut int64
	budget    *BudgetGuard

	total       int
	pending     int
	succeeded   int
	failedN     int
	skipped     int
	interrupted bool
	failCodes   map[string]int
	tallies     map[string]map[string]int

	started        time.Time
	lastCheckpoint time.Time
}

func newRun(id string, p domain.Progress, ceiling float64, tally []string, now time.Time) *run {
	r := &run{
		id:        id,
		processed: make(map[int64]struct{}, len(p.ProcessedIDs)),
		failed:    make(map[int64]struct{}, len(p.FailedIDs)),
		tokensIn:  p.TokensInput,
		tokensOut: p.TokensOutput,
		budget:    NewBudgetGuard(ceiling, p.TotalCost),
		failCodes: map[string]int{},
		tallies:   make(map[string]map[string]int, len(tally)),
		started:   now,
	}
	for _, id := range p.ProcessedIDs {
		r.processed[id] = struct{}{}
	}
	for _, id := range p.FailedIDs {
		r.failed[id] = struct{}{}
	}
	for _, name := range tally {
		r.tallies[name] = map[string]int{}
	}
	return r
}

func (r *run) setPhase(p domain.Phase) {
	r.mu.Lock()
	r.phase = p
	r.mu.Unlock()
}

func (r *run) over() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.budget.Over()
}

func (r *run) isProcessed(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.processed[id]
	return ok
}

// markProcessed records an id already present in the result log
func (r *run) markProcessed(id int64) {
	r.mu.Lock()
	r.processed[id] = struct{}{}
	delete(r.failed, id)
	r.mu.Unlock()
}

// spendLocked accumulates tokens and cost; the caller holds mu
func (r *run) spendLocked(in, out int, cost float64) {
	r.tokensIn += int64(in)
	r.tokensOut += int64(out)
	r.budget.Add(cost)
}

func (r *run) spend(in, out int, cost float64) {
	r.mu.Lock()
	r.spendLocked(in, out, cost)
	r.mu.Unlock()
}

func (r *run) succeed(id int64, in, out int, cost float64, a domain.Analysis) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spendLocked(in, out, cost)
	r.processed[id] = struct{}{}
	delete(r.failed, id)
	r.succeeded++
	r.pending--
	for name, counts := range r.tallies {
		counts[fmt.Sprint(a[name])]++
	}
}

func (r *run) skip(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed[id] = struct{}{}
	delete(r.failed, id)
	r.skipped++
	r.pending--
}

func (r *run) fail(id int64, code string, in, out int, cost float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spendLocked(in, out, cost)
	r.failed[id] = struct{}{}
	r.failedN++
	r.pending--
	r.failCodes[code]++
}

func (r *run) progress(now time.Time) domain.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.Progress{
		ProcessedIDs: slices.Collect(maps.Keys(r.processed)),
		FailedIDs:    slices.Collect(maps.Keys(r.failed)),
		TokensInput:  r.tokensIn,
		TokensOutput: r.tokensOut,
		TotalCost:    r.budget.Spent(),
		LastUpdate:   now.UTC(),
		RunID:        r.id,
	}
}

func (r *run) snapshot() domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	tallies := make(map[string]map[string]int, len(r.tallies))
	for k, v := range r.tallies {
		tallies[k] = maps.Clone(v)
	}
	return domain.Snapshot{
		RunID:          r.id,
		Phase:          r.phase,
		Total:          r.total,
		Pending:        r.pending,
		Succeeded:      r.succeeded,
		Failed:         r.failedN,
		Skipped:        r.skipped,
		Processed:      len(r.processed),
		TokensInput:    r.tokensIn,
		TokensOutput:   r.tokensOut,
		Cost:           r.budget.Spent(),
		Budget:         r.budget.Ceiling(),
		OverBudget:     r.budget.Over(),
		Interrupted:    r.interrupted,
		FailuresByCode: maps.Clone(r.failCodes),
		Tallies:        tallies,
		StartedAt:      r.started,
		LastCheckpoint: r.lastCheckpoint,
	}
}
