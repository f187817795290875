package eviction

// Table is the store view a Controller evicts from. Usage and
// Candidates must reflect prior Evict calls immediately, and Evict
// reports false when the keyed entry is already gone.
type Table interface {
	Usage() int64
	Candidates() []Candidate
	Evict(key string) bool
}

// Controller drives one Strategy against one store.
type Controller struct {
	strategy Strategy
	ceiling  int64
}

// NewController returns a controller enforcing ceiling bytes with the
// given strategy. A ceiling of 0 disables enforcement; a nil strategy
// falls back to Recency.
func NewController(strategy Strategy, ceiling int64) *Controller {
	if strategy == nil {
		strategy = Recency{}
	}
	return &Controller{strategy: strategy, ceiling: ceiling}
}

// Strategy reports the configured strategy.
func (c *Controller) Strategy() Strategy {
	if c == nil {
		return nil
	}
	return c.strategy
}

// Ceiling reports the configured byte ceiling.
func (c *Controller) Ceiling() int64 {
	if c == nil {
		return 0
	}
	return c.ceiling
}

// Run evicts one victim at a time until the table fits the ceiling or
// only one entry remains. It returns the number of evicted entries.
func (c *Controller) Run(t Table) int {
	if c == nil || c.ceiling <= 0 {
		return 0
	}

	evicted := 0
	for t.Usage() > c.ceiling {
		cands := t.Candidates()
		if len(cands) <= 1 {
			break
		}
		i := c.strategy.Pick(cands)
		if i < 0 {
			break
		}
		if !t.Evict(cands[i].Key) {
			break
		}
		evicted++
	}
	return evicted
}
