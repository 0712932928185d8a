package environment

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r1"
)

func TestUniformStarter(t *testing.T) {
	bounds := []r1.Interval{{Min: -1, Max: 0}, {Min: 2, Max: 5}}
	starter := NewUniformStarter(bounds, 1)

	for i := 0; i < 100; i++ {
		start := starter.Start()
		if start.Len() != 2 {
			t.Fatalf("have %v features, want 2", start.Len())
		}
		for j, b := range bounds {
			if x := start.AtVec(j); x < b.Min || x > b.Max {
				t.Errorf("feature %v = %v outside [%v, %v]", j, x, b.Min,
					b.Max)
			}
		}
	}

	// Starting states are reproducible for a fixed seed
	a := NewUniformStarter(bounds, 7).Start()
	b := NewUniformStarter(bounds, 7).Start()
	if a.AtVec(0) != b.AtVec(0) || a.AtVec(1) != b.AtVec(1) {
		t.Error("same seed gives different starting states")
	}
}

func TestStepLimit(t *testing.T) {
	ender := NewStepLimit(3)
	for step, want := range []bool{false, false, false, true, true} {
		if have := ender.End(step); have != want {
			t.Errorf("step %v: have %v, want %v", step, have, want)
		}
	}
}
