package bake

// Coverage tracks which slices hold real data, indexed by sample index.
// Slices only ever go from uncovered to covered within a bake.
type Coverage struct {
	covered []bool
	count   int
}

// NewCoverage creates an all-uncovered tracker for n slices.
func NewCoverage(n int) *Coverage {
	return &Coverage{covered: make([]bool, n)}
}

// Len returns the number of tracked slices.
func (c *Coverage) Len() int {
	return len(c.covered)
}

// Reset marks every slice uncovered. Only a new bake may reset coverage.
func (c *Coverage) Reset() {
	clear(c.covered)
	c.count = 0
}

// Mark records slice i as covered.
func (c *Coverage) Mark(i int) {
	if !c.covered[i] {
		c.covered[i] = true
		c.count++
	}
}

// Covered reports whether slice i is covered.
func (c *Coverage) Covered(i int) bool {
	return c.covered[i]
}

// Count returns the number of covered slices.
func (c *Coverage) Count() int {
	return c.count
}

// Any reports whether at least one slice is covered.
func (c *Coverage) Any() bool {
	return c.count > 0
}

// Uncovered returns the uncovered slice indices in ascending order.
func (c *Coverage) Uncovered() []int {
	out := make([]int, 0, len(c.covered)-c.count)
	for i, ok := range c.covered {
		if !ok {
			out = append(out, i)
		}
	}
	return out
}
