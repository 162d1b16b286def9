package bitset

// Mask is a reusable, non-thread-safe set of slice positions.
// It records which words it touched so Reset clears only those.
type Mask struct {
	words []uint64
	dirty []int
	n     int
}

// NewMask creates a Mask sized for capacity positions. It grows on demand.
func NewMask(capacity int) *Mask {
	return &Mask{
		words: make([]uint64, (capacity+63)/64),
		dirty: make([]int, 0, 4),
	}
}

// Set marks position i. It reports whether i was already marked.
func (m *Mask) Set(i int) bool {
	w := i >> 6
	bit := uint64(1) << (i & 63)
	if w >= len(m.words) {
		m.grow(w + 1)
	}
	if m.words[w]&bit != 0 {
		return true
	}
	if m.words[w] == 0 {
		m.dirty = append(m.dirty, w)
	}
	m.words[w] |= bit
	m.n++
	return false
}

// Test reports whether position i is marked.
func (m *Mask) Test(i int) bool {
	w := i >> 6
	if w >= len(m.words) {
		return false
	}
	return m.words[w]&(uint64(1)<<(i&63)) != 0
}

// Len returns the number of marked positions.
func (m *Mask) Len() int { return m.n }

// Reset unmarks every position.
func (m *Mask) Reset() {
	for _, w := range m.dirty {
		m.words[w] = 0
	}
	m.dirty = m.dirty[:0]
	m.n = 0
}

func (m *Mask) grow(n int) {
	words := make([]uint64, max(len(m.words)*2, n))
	copy(words, m.words)
	m.words = words
}

// Drop removes the marked positions from s in place and returns the
// shortened slice. The order of the kept elements is preserved.
func Drop[T any](s []T, m *Mask) []T {
	if m.n == 0 {
		return s
	}
	kept := s[:0]
	for i, v := range s {
		if !m.Test(i) {
			kept = append(kept, v)
		}
	}
	return kept
}
