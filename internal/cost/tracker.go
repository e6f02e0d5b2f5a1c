package cost

import "sync"

// Tracker accumulates the cost of every LLM call made during one graph
// run, so the worker can attach a total spend to the terminal event
// without every node needing to thread a running total through
// AgentState.
type Tracker struct {
	calc *Calculator

	mu    sync.Mutex
	total Cost
	calls int
}

// NewTracker builds a Tracker priced against calc.
func NewTracker(calc *Calculator) *Tracker {
	return &Tracker{calc: calc, total: Cost{Currency: "USD"}}
}

// Record prices usage and adds it to the running total. A pricing miss
// is tracked as zero-cost rather than failing the call it's tracking:
// cost accounting must never block a response.
func (t *Tracker) Record(usage *Usage) *Cost {
	c, err := t.calc.Calculate(usage)
	if err != nil {
		c = &Cost{Currency: "USD"}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.total.InputCost += c.InputCost
	t.total.OutputCost += c.OutputCost
	t.total.CachedCost += c.CachedCost
	t.total.TotalCost += c.TotalCost
	t.calls++
	return c
}

// Total returns the accumulated cost so far.
func (t *Tracker) Total() Cost {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Calls returns how many LLM calls have been recorded.
func (t *Tracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}
