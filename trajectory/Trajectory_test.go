package trajectory

import (
	"math"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func newBatch() *Batch {
	return &Batch{
		States:      mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6}),
		Actions:     mat.NewDense(3, 1, []float64{0, 1, 0}),
		Rewards:     []float64{1, 0, -1},
		Masks:       []float64{1, 0, 1},
		OldLogProbs: []float64{-0.5, -0.7, -0.1},
	}
}

func TestValidate(t *testing.T) {
	if err := newBatch().Validate(); err != nil {
		t.Fatal(err)
	}

	tests := map[string]func(b *Batch){
		"missing states":  func(b *Batch) { b.States = nil },
		"empty":           func(b *Batch) { b.Rewards = nil },
		"short masks":     func(b *Batch) { b.Masks = b.Masks[:2] },
		"short log probs": func(b *Batch) { b.OldLogProbs = b.OldLogProbs[:1] },
		"extra actions": func(b *Batch) {
			b.Actions = mat.NewDense(4, 1, nil)
		},
		"invalid mask": func(b *Batch) { b.Masks[1] = 0.5 },
		"nan log prob": func(b *Batch) { b.OldLogProbs[2] = math.NaN() },
		"inf log prob": func(b *Batch) { b.OldLogProbs[0] = math.Inf(-1) },
		"nan reward":   func(b *Batch) { b.Rewards[1] = math.NaN() },
		"inf reward":   func(b *Batch) { b.Rewards[0] = math.Inf(1) },
	}
	for name, corrupt := range tests {
		t.Run(name, func(t *testing.T) {
			b := newBatch()
			corrupt(b)
			if b.Validate() == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "batch.json")
	b := newBatch()
	if err := b.Save(filename); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(filename)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(loaded.States, b.States) || !mat.Equal(loaded.Actions,
		b.Actions) {
		t.Error("loaded states or actions differ")
	}
	if !floats.Equal(loaded.Rewards, b.Rewards) ||
		!floats.Equal(loaded.Masks, b.Masks) ||
		!floats.Equal(loaded.OldLogProbs, b.OldLogProbs) {
		t.Error("loaded rewards, masks, or log probabilities differ")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestRecorder(t *testing.T) {
	r, err := NewRecorder(2, 1, 3)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Store([]float64{1, 2}, []float64{0}, 1, false, -0.5); err != nil {
		t.Fatal(err)
	}
	if err := r.Store([]float64{3, 4}, []float64{1}, 2, true, -0.6); err != nil {
		t.Fatal(err)
	}
	if r.Full() {
		t.Error("recorder full after 2 of 3 transitions")
	}
	if err := r.Store([]float64{5}, []float64{1}, 2, false, 0); err == nil {
		t.Error("expected an error for an observation of the wrong size")
	}
	if err := r.Store([]float64{5, 6}, []float64{0}, 3, false, -0.7); err != nil {
		t.Fatal(err)
	}
	if !r.Full() {
		t.Error("recorder not full after 3 transitions")
	}
	if err := r.Store([]float64{7, 8}, []float64{0}, 4, false, 0); err == nil {
		t.Error("expected an error when storing to a full recorder")
	}

	b, err := r.Batch()
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Validate(); err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(b.Rewards, []float64{1, 2, 3}) {
		t.Errorf("have rewards %v", b.Rewards)
	}

	// The final transition is cut off so it ends the batch
	if !floats.Equal(b.Masks, []float64{1, 0, 0}) {
		t.Errorf("have masks %v, want [1 0 0]", b.Masks)
	}
	if b.States.At(2, 1) != 6 {
		t.Errorf("have final state %v", mat.Formatted(b.States))
	}

	if r.Len() != 0 {
		t.Errorf("recorder holds %v transitions after Batch", r.Len())
	}
	if _, err := r.Batch(); err == nil {
		t.Error("expected an error for an empty recorder")
	}
}
