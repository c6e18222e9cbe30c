package service

// Rates are prices per million input and output units
type Rates struct {
	InputPerM  float64
	OutputPerM float64
}

// Cost prices one call
func (r Rates) Cost(in, out int) float64 {
	return float64(in)*r.InputPerM/1e6 + float64(out)*r.OutputPerM/1e6
}

// BudgetGuard accumulates spend against a fixed ceiling. Spend never
// decreases and once over the ceiling the guard stays over.
// Not safe for concurrent use; the pool calls it under its run mutex.
type BudgetGuard struct {
	ceiling float64
	spent   float64
	tripped bool
}

// NewBudgetGuard starts from spent (restored from a checkpoint); ceiling <= 0 disables the limit
func NewBudgetGuard(ceiling, spent float64) *BudgetGuard {
	g := &BudgetGuard{ceiling: ceiling}
	g.Add(spent)
	return g
}

// Add records cost; negative values are ignored
func (g *BudgetGuard) Add(cost float64) {
	if cost > 0 {
		g.spent += cost
	}
	if g.ceiling > 0 && g.spent >= g.ceiling {
		g.tripped = true
	}
}

// Over reports whether the ceiling has been reached
func (g *BudgetGuard) Over() bool { return g.tripped }

// Spent returns the accumulated cost
func (g *BudgetGuard) Spent() float64 { return g.spent }

// Ceiling returns the limit
func (g *BudgetGuard) Ceiling() float64 { return g.ceiling }

// Remaining returns what is left before the ceiling; negative when unlimited
func (g *BudgetGuard) Remaining() float64 {
	if g.ceiling <= 0 {
		return -1
	}
	return max(g.ceiling-g.spent, 0)
}
