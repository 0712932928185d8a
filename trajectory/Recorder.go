package trajectory

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Recorder accumulates transitions online until a fixed number have
// been stored, after which the transitions can be retrieved as a
// Batch.
type Recorder struct {
	obsSize    int // Size of state observations
	actionSize int // Number of action dimensions
	maxSize    int // Max number of transitions

	currentPos int // Current position in the buffers

	// Buffers for storing data
	obsBuffer     []float64
	actBuffer     []float64
	rewBuffer     []float64
	maskBuffer    []float64
	logProbBuffer []float64
}

// NewRecorder returns a new Recorder holding size transitions
func NewRecorder(obsDim, actDim, size int) (*Recorder, error) {
	if obsDim <= 0 || actDim <= 0 || size <= 0 {
		return nil, fmt.Errorf("newRecorder: dimensions and size must be " +
			"positive")
	}

	return &Recorder{
		obsSize:       obsDim,
		actionSize:    actDim,
		maxSize:       size,
		obsBuffer:     make([]float64, size*obsDim),
		actBuffer:     make([]float64, size*actDim),
		rewBuffer:     make([]float64, size),
		maskBuffer:    make([]float64, size),
		logProbBuffer: make([]float64, size),
	}, nil
}

// Store stores a single transition. The terminal argument should be
// true if the transition ended an episode.
func (r *Recorder) Store(obs, act []float64, rew float64, terminal bool,
	logProb float64) error {
	if r.currentPos >= r.maxSize {
		return fmt.Errorf("store: cannot add new transition, recorder at " +
			"maximum capacity")
	}
	if len(obs) != r.obsSize {
		return fmt.Errorf("store: illegal obs length \n\twant(%v)\n\thave(%v)",
			r.obsSize, len(obs))
	}
	if len(act) != r.actionSize {
		return fmt.Errorf("store: illegal act length \n\twant(%v)\n\thave(%v)",
			r.actionSize, len(act))
	}

	start := r.currentPos * r.obsSize
	copy(r.obsBuffer[start:start+r.obsSize], obs)

	start = r.currentPos * r.actionSize
	copy(r.actBuffer[start:start+r.actionSize], act)

	r.rewBuffer[r.currentPos] = rew
	r.maskBuffer[r.currentPos] = 1
	if terminal {
		r.maskBuffer[r.currentPos] = 0
	}
	r.logProbBuffer[r.currentPos] = logProb
	r.currentPos++
	return nil
}

// Len returns the number of stored transitions
func (r *Recorder) Len() int {
	return r.currentPos
}

// Full returns whether the Recorder is at capacity
func (r *Recorder) Full() bool {
	return r.currentPos == r.maxSize
}

// Batch returns a copy of the stored transitions and resets the
// Recorder. The final transition is marked as ending an episode, since
// nothing after it is part of the Batch.
func (r *Recorder) Batch() (*Batch, error) {
	if r.currentPos == 0 {
		return nil, fmt.Errorf("batch: no transitions recorded")
	}
	n := r.currentPos

	b := &Batch{
		States: mat.NewDense(n, r.obsSize,
			copyOf(r.obsBuffer[:n*r.obsSize])),
		Actions: mat.NewDense(n, r.actionSize,
			copyOf(r.actBuffer[:n*r.actionSize])),
		Rewards:     copyOf(r.rewBuffer[:n]),
		Masks:       copyOf(r.maskBuffer[:n]),
		OldLogProbs: copyOf(r.logProbBuffer[:n]),
	}
	b.Masks[n-1] = 0

	r.Reset()
	return b, nil
}

// Reset discards all stored transitions
func (r *Recorder) Reset() {
	r.currentPos = 0
}

func copyOf(x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	return out
}
