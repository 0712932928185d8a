// Package trajectory implements batches of transitions collected under
// a single policy, along with a recorder to build them online.
package trajectory

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
)

// Batch is an ordered sequence of transitions collected with a fixed
// policy. Row t of States and Actions hold the state and action of
// transition t. Masks[t] is 0 if transition t ended an episode and 1
// otherwise. OldLogProbs[t] is the log probability of Actions[t] under
// the policy that generated the batch.
type Batch struct {
	States      *mat.Dense
	Actions     *mat.Dense
	Rewards     []float64
	Masks       []float64
	OldLogProbs []float64
}

// Len returns the number of transitions in the Batch
func (b *Batch) Len() int {
	return len(b.Rewards)
}

// Validate returns an error if the Batch is malformed
func (b *Batch) Validate() error {
	if b.States == nil || b.Actions == nil {
		return fmt.Errorf("validate: batch must have states and actions")
	}
	n := len(b.Rewards)
	if n == 0 {
		return fmt.Errorf("validate: empty batch")
	}
	if r, _ := b.States.Dims(); r != n {
		return fmt.Errorf("validate: have %v states for %v rewards", r, n)
	}
	if r, _ := b.Actions.Dims(); r != n {
		return fmt.Errorf("validate: have %v actions for %v rewards", r, n)
	}
	if len(b.Masks) != n {
		return fmt.Errorf("validate: have %v masks for %v rewards",
			len(b.Masks), n)
	}
	if len(b.OldLogProbs) != n {
		return fmt.Errorf("validate: have %v log probabilities for %v "+
			"rewards", len(b.OldLogProbs), n)
	}
	for t, m := range b.Masks {
		if m != 0 && m != 1 {
			return fmt.Errorf("validate: mask %v at transition %v must be "+
				"0 or 1", m, t)
		}
	}
	for t, r := range b.Rewards {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return fmt.Errorf("validate: reward at transition %v is not "+
				"finite", t)
		}
	}
	for t, lp := range b.OldLogProbs {
		if math.IsNaN(lp) || math.IsInf(lp, 0) {
			return fmt.Errorf("validate: log probability at transition %v "+
				"is not finite", t)
		}
	}
	return nil
}

// batchJSON is the on-disk layout of a Batch
type batchJSON struct {
	States      [][]float64
	Actions     [][]float64
	Rewards     []float64
	Masks       []float64
	OldLogProbs []float64
}

// MarshalJSON implements the json.Marshaler interface
func (b *Batch) MarshalJSON() ([]byte, error) {
	return json.Marshal(batchJSON{
		States:      rows(b.States),
		Actions:     rows(b.Actions),
		Rewards:     b.Rewards,
		Masks:       b.Masks,
		OldLogProbs: b.OldLogProbs,
	})
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (b *Batch) UnmarshalJSON(data []byte) error {
	var raw batchJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	states, err := dense(raw.States)
	if err != nil {
		return fmt.Errorf("unmarshalJSON: states: %v", err)
	}
	actions, err := dense(raw.Actions)
	if err != nil {
		return fmt.Errorf("unmarshalJSON: actions: %v", err)
	}

	*b = Batch{
		States:      states,
		Actions:     actions,
		Rewards:     raw.Rewards,
		Masks:       raw.Masks,
		OldLogProbs: raw.OldLogProbs,
	}
	return nil
}

// Load reads and validates a Batch stored as JSON in filename
func Load(filename string) (*Batch, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("load: %v", err)
	}

	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("load: could not decode %v: %v", filename, err)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("load: %v: %v", filename, err)
	}
	return &b, nil
}

// Save writes the Batch as JSON to filename
func (b *Batch) Save(filename string) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("save: %v", err)
	}
	return os.WriteFile(filename, data, 0o644)
}

func rows(m *mat.Dense) [][]float64 {
	if m == nil {
		return nil
	}
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
		copy(out[i], m.RawRowView(i))
	}
	return out
}

func dense(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows")
	}
	c := len(rows[0])
	if c == 0 {
		return nil, fmt.Errorf("no columns")
	}

	data := make([]float64, 0, len(rows)*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("row %v has %v columns, want %v", i,
				len(row), c)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), c, data), nil
}
