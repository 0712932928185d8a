package params

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestSetSnapshot(t *testing.T) {
	s := New("policy", mat.NewVecDense(3, []float64{1, 2, 3}))

	snap := s.Snapshot()
	if err := s.AddScaled(0.1, mat.NewVecDense(3, []float64{1, 1, 1})); err != nil {
		t.Fatal(err)
	}
	if snap.AtVec(0) != 1 {
		t.Error("snapshot changed with the store")
	}

	if err := s.Set(snap); err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(s.Vector().RawVector().Data, []float64{1, 2, 3}) {
		t.Errorf("have parameters %v after restoring snapshot",
			s.Vector().RawVector().Data)
	}

	if err := s.Set(mat.NewVecDense(2, nil)); err == nil {
		t.Error("expected an error for the wrong length")
	}
}

func TestSetBitExact(t *testing.T) {
	data := []float64{0.1, -1e-300, math.Nextafter(1, 2), math.SmallestNonzeroFloat64}
	s := New("value", mat.NewVecDense(len(data), data))
	snap := s.Snapshot()

	for i := 0; i < 10; i++ {
		s.AddScaled(0.3, mat.NewVecDense(len(data), []float64{1, 2, 3, 4}))
	}
	s.Set(snap)

	for i, want := range data {
		if have := s.Vector().AtVec(i); math.Float64bits(have) !=
			math.Float64bits(want) {
			t.Errorf("parameter %v: have %v, want %v", i, have, want)
		}
	}
}

func TestPolyak(t *testing.T) {
	target := New("target", mat.NewVecDense(2, []float64{0, 10}))
	source := New("source", mat.NewVecDense(2, []float64{1, 0}))

	if err := target.Polyak(source, 0.75); err != nil {
		t.Fatal(err)
	}
	want := []float64{0.25, 7.5}
	if !floats.EqualApprox(target.Vector().RawVector().Data, want, 1e-12) {
		t.Errorf("have %v, want %v", target.Vector().RawVector().Data, want)
	}

	if err := target.Polyak(source, 0); err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(target.Vector(), source.Vector()) {
		t.Error("polyak of 0 should copy the source")
	}

	if err := target.Polyak(source, 1.5); err == nil {
		t.Error("expected an error for polyak outside [0, 1]")
	}
	if err := target.Polyak(Zeroes("other", 3), 0.5); err == nil {
		t.Error("expected an error for stores of different lengths")
	}
}

func TestSlice(t *testing.T) {
	s := Zeroes("policy", 4)
	s.Slice(2, 4).SetVec(0, 5)
	if s.Vector().AtVec(2) != 5 {
		t.Error("slice is not a view of the store")
	}
}

func TestIsFinite(t *testing.T) {
	s := New("policy", mat.NewVecDense(2, []float64{1, 2}))
	if !s.IsFinite() {
		t.Error("finite store reported as not finite")
	}
	s.Vector().SetVec(1, math.Inf(-1))
	if s.IsFinite() {
		t.Error("infinite store reported as finite")
	}
	s.Vector().SetVec(1, math.NaN())
	if s.IsFinite() {
		t.Error("NaN store reported as finite")
	}
}

func TestGob(t *testing.T) {
	s := New("critic", mat.NewVecDense(3, []float64{1.5, -2, 3}))

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		t.Fatal(err)
	}
	var decoded Store
	if err := gob.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatal(err)
	}

	if decoded.Name() != "critic" {
		t.Errorf("have name %v, want critic", decoded.Name())
	}
	if !mat.Equal(decoded.Vector(), s.Vector()) {
		t.Errorf("have parameters %v, want %v",
			decoded.Vector().RawVector().Data, s.Vector().RawVector().Data)
	}
}
