// Package expreplay implements experience replay buffers which store
// transitions in a fixed size ring and evict the oldest transition
// first once full.
package expreplay

import (
	"fmt"
	"sync"

	"github.com/samuelfneumann/gotrpo/timestep"
	"gonum.org/v1/gonum/mat"
)

// Config implements a specific configuration of an ExperienceReplayer
type Config struct {
	SampleSize        int
	MaxReplayCapacity int
	MinReplayCapacity int
}

// Create creates and returns the ExperienceReplayer with the specified
// Config, sampling uniformly.
func (c Config) Create(featureSize, actionSize int,
	seed uint64) (ExperienceReplayer, error) {
	return New(NewUniformSelector(c.SampleSize, seed), c.MinReplayCapacity,
		c.MaxReplayCapacity, featureSize, actionSize)
}

// Batch is a batch of transitions sampled from a buffer. Row i of each
// matrix and element i of each slice belong to the same transition.
type Batch struct {
	States     *mat.Dense
	Actions    *mat.Dense
	Rewards    []float64
	Discounts  []float64
	NextStates *mat.Dense
}

// ExperienceReplayer implements an experience replay buffer
type ExperienceReplayer interface {
	// Add adds a transition to the buffer
	Add(t timestep.Transition) error

	// Sample samples a batch of experience from the buffer
	Sample() (*Batch, error)

	// Capacity returns the current number of samples in the buffer
	Capacity() int

	// MaxCapacity returns the maximum allowable samples in the buffer
	MaxCapacity() int

	// MinCapacity returns the number of samples required to be in
	// the buffer before the buffer can be sampled
	MinCapacity() int

	// BatchSize returns the number of samples returned by Sample()
	BatchSize() int
}

// cache implements a concrete ExperienceReplayer. Elements are stored
// in a ring: once full, each Add overwrites the oldest element.
type cache struct {
	sync.RWMutex
	stateCache     []float64
	actionCache    []float64
	rewardCache    []float64
	discountCache  []float64
	nextStateCache []float64

	// next is the storage position written by the next Add, and size
	// is the number of elements in the buffer
	next int
	size int

	sampler Selector

	minCapacity int
	maxCapacity int
	featureSize int
	actionSize  int
}

// New creates and returns a new ExperienceReplayer. The sampler
// determines how data is sampled from the replay buffer. The
// featureSize and actionSize parameters define the size of the feature
// and action vectors.
//
// Pixel observations should be flattened before adding to the buffer.
func New(sampler Selector, minCapacity, maxCapacity, featureSize,
	actionSize int) (ExperienceReplayer, error) {
	if minCapacity <= 0 {
		return nil, fmt.Errorf("new: minCapacity must be > 0")
	}
	if maxCapacity < minCapacity {
		return nil, fmt.Errorf("new: maxCapacity (%v) must be >= "+
			"minCapacity (%v)", maxCapacity, minCapacity)
	}
	if sampler.BatchSize() <= 0 {
		return nil, fmt.Errorf("new: batch size must be positive")
	}
	if featureSize <= 0 || actionSize <= 0 {
		return nil, fmt.Errorf("new: feature and action sizes must be " +
			"positive")
	}

	return &cache{
		stateCache:     make([]float64, maxCapacity*featureSize),
		actionCache:    make([]float64, maxCapacity*actionSize),
		rewardCache:    make([]float64, maxCapacity),
		discountCache:  make([]float64, maxCapacity),
		nextStateCache: make([]float64, maxCapacity*featureSize),

		sampler: sampler,

		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
		featureSize: featureSize,
		actionSize:  actionSize,
	}, nil
}

// String returns the string representation of the cache
func (c *cache) String() string {
	c.RLock()
	defer c.RUnlock()

	baseStr := "Size: %v \nStates: %v \nActions: %v \nRewards: %v " +
		"\nDiscounts: %v \nNext States: %v"
	return fmt.Sprintf(baseStr, c.size, c.stateCache, c.actionCache,
		c.rewardCache, c.discountCache, c.nextStateCache)
}

// BatchSize returns the number of samples sampled using Sample() -
// a.k.a the batch size
func (c *cache) BatchSize() int {
	return c.sampler.BatchSize()
}

// Capacity returns the current number of elements in the cache that
// are available for sampling
func (c *cache) Capacity() int {
	c.RLock()
	defer c.RUnlock()
	return c.size
}

// MaxCapacity returns the maximum number of elements that are allowed
// in the cache
func (c *cache) MaxCapacity() int {
	return c.maxCapacity
}

// MinCapacity returns the minimum number of elements required in the
// cache before sampling is allowed
func (c *cache) MinCapacity() int {
	return c.minCapacity
}

// position returns the storage position of the i-th oldest element
func (c *cache) position(i int) int {
	oldest := c.next - c.size
	if oldest < 0 {
		oldest += c.maxCapacity
	}
	return (oldest + i) % c.maxCapacity
}

// Sample samples and returns a batch of transitions from the replay
// buffer
func (c *cache) Sample() (*Batch, error) {
	c.RLock()
	defer c.RUnlock()

	if c.size == 0 {
		return nil, &ExpReplayError{Op: "sample", Err: errEmptyCache}
	}
	if c.size < c.minCapacity {
		return nil, &ExpReplayError{Op: "sample", Err: errInsufficientSamples}
	}

	indices := c.sampler.choose(c.size)
	n := len(indices)
	b := &Batch{
		States:     mat.NewDense(n, c.featureSize, nil),
		Actions:    mat.NewDense(n, c.actionSize, nil),
		Rewards:    make([]float64, n),
		Discounts:  make([]float64, n),
		NextStates: mat.NewDense(n, c.featureSize, nil),
	}

	for i, index := range indices {
		pos := c.position(index)
		s := pos * c.featureSize
		a := pos * c.actionSize
		b.States.SetRow(i, c.stateCache[s:s+c.featureSize])
		b.NextStates.SetRow(i, c.nextStateCache[s:s+c.featureSize])
		b.Actions.SetRow(i, c.actionCache[a:a+c.actionSize])
		b.Rewards[i] = c.rewardCache[pos]
		b.Discounts[i] = c.discountCache[pos]
	}
	return b, nil
}

// Add adds a transition to the cache, evicting the oldest transition
// if the cache is full
func (c *cache) Add(t timestep.Transition) error {
	if t.State.Len() != c.featureSize || t.NextState.Len() != c.featureSize {
		return fmt.Errorf("add: invalid feature size \n\twant(%v)\n\thave(%v)",
			c.featureSize, t.State.Len())
	}
	if t.Action.Len() != c.actionSize {
		return fmt.Errorf("add: invalid action size \n\twant(%v)\n\thave(%v)",
			c.actionSize, t.Action.Len())
	}

	c.Lock()
	defer c.Unlock()

	index := c.next
	s := index * c.featureSize
	a := index * c.actionSize
	copy(c.stateCache[s:s+c.featureSize], t.State.RawVector().Data)
	copy(c.nextStateCache[s:s+c.featureSize], t.NextState.RawVector().Data)
	copy(c.actionCache[a:a+c.actionSize], t.Action.RawVector().Data)
	c.rewardCache[index] = t.Reward
	c.discountCache[index] = t.Discount

	c.next = (c.next + 1) % c.maxCapacity
	if c.size < c.maxCapacity {
		c.size++
	}
	return nil
}
