package expreplay

import "golang.org/x/exp/rand"

// Selector implements functionality for choosing which indices of an
// experience replay buffer are sampled
type Selector interface {
	// choose selects batch indices in [0, capacity)
	choose(capacity int) []int

	// BatchSize returns the number of elements that will be selected
	BatchSize() int
}

// uniformSelector is a Selector which selects data from an experience
// replay buffer uniformly randomly with replacement
type uniformSelector struct {
	samples int
	rng     *rand.Rand
}

// NewUniformSelector returns a new Selector which selects data uniformly
// randomly from an experience replay buffer
func NewUniformSelector(samples int, seed uint64) Selector {
	return &uniformSelector{
		samples: samples,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// BatchSize gets the number of samples in a batch drawn from the buffer
func (u *uniformSelector) BatchSize() int {
	return u.samples
}

func (u *uniformSelector) choose(capacity int) []int {
	selected := make([]int, u.samples)
	for i := range selected {
		selected[i] = u.rng.Intn(capacity)
	}
	return selected
}

// fifoSelector is a Selector which selects the most recently added
// data first
type fifoSelector struct {
	samples int
}

// NewRecentSelector returns a new Selector which draws the indices of
// the most recently added data
func NewRecentSelector(samples int) Selector {
	return &fifoSelector{samples: samples}
}

// BatchSize gets the number of samples in a batch drawn from the buffer
func (f *fifoSelector) BatchSize() int {
	return f.samples
}

// choose returns offsets from the newest element; the buffer maps
// them onto storage positions
func (f *fifoSelector) choose(capacity int) []int {
	n := f.samples
	if n > capacity {
		n = capacity
	}
	selected := make([]int, n)
	for i := range selected {
		selected[i] = capacity - 1 - i
	}
	return selected
}
