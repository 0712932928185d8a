package checkpointer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/samuelfneumann/gotrpo/params"
	"gonum.org/v1/gonum/mat"
)

func TestSaveLoad(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "stores.bin")
	policy := params.New("policy", mat.NewVecDense(3, []float64{1, 2, 3}))
	value := params.New("value", mat.NewVecDense(2, []float64{-1, 0.5}))

	if err := Save(filename, policy, value); err != nil {
		t.Fatal(err)
	}

	// Stores are matched by name, regardless of order
	restoredValue := params.Zeroes("value", 2)
	restoredPolicy := params.Zeroes("policy", 3)
	if err := Load(filename, restoredValue, restoredPolicy); err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(restoredPolicy.Vector(), policy.Vector()) ||
		!mat.Equal(restoredValue.Vector(), value.Vector()) {
		t.Error("restored parameters differ from saved parameters")
	}

	if err := Load(filename, params.Zeroes("critic", 2)); err == nil {
		t.Error("expected an error for a store missing from the checkpoint")
	}
	if err := Load(filename, params.Zeroes("policy", 4)); err == nil {
		t.Error("expected an error for a store of the wrong size")
	}
}

func TestNIter(t *testing.T) {
	dir := t.TempDir()
	store := params.New("policy", mat.NewVecDense(1, []float64{1}))
	c := NewNIter(3, FilenameEnumerator(0, filepath.Join(dir, "ckpt"), "bin"),
		store)

	for i := 1; i <= 7; i++ {
		store.Vector().SetVec(0, float64(i))
		if err := c.Checkpoint(i); err != nil {
			t.Fatal(err)
		}
	}

	for i, want := range map[int]float64{1: 3, 2: 6} {
		filename := filepath.Join(dir, "ckpt"+string(rune('0'+i))+".bin")
		restored := params.Zeroes("policy", 1)
		if err := Load(filename, restored); err != nil {
			t.Fatal(err)
		}
		if have := restored.Vector().AtVec(0); have != want {
			t.Errorf("checkpoint %v: have %v, want %v", i, have, want)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "ckpt3.bin")); !os.IsNotExist(err) {
		t.Error("unexpected third checkpoint")
	}
}

func TestFilenameEnumerator(t *testing.T) {
	next := FilenameEnumerator(4, "run/checkpoint", ".bin")
	for _, want := range []string{"run/checkpoint5.bin", "run/checkpoint6.bin"} {
		if have := next(); have != want {
			t.Errorf("have %v, want %v", have, want)
		}
	}
}
