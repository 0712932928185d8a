package metrics

import (
	"bytes"
	"context"
	"errors"
	"log"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLog(log.New(&buf, "", 0))

	if err := sink.Record(3, map[string]float64{"kl": 0.01, "accepted": 1}); err != nil {
		t.Fatal(err)
	}
	want := "iteration 3 | accepted: 1 kl: 0.01\n"
	if buf.String() != want {
		t.Errorf("have %q, want %q", buf.String(), want)
	}
}

func TestGob(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "stats.bin")
	sink := NewGob(filename)

	stats := map[string]float64{"kl": 0.5}
	for i := 0; i < 3; i++ {
		stats["kl"] = float64(i)
		if err := sink.Record(i, stats); err != nil {
			t.Fatal(err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sink.Record(3, stats); err == nil {
		t.Error("expected an error recording to a closed sink")
	}

	records, err := LoadGob(filename)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("have %v records, want 3", len(records))
	}
	for i, r := range records {
		if r.Iteration != i || r.Stats["kl"] != float64(i) {
			t.Errorf("record %v: have %+v", i, r)
		}
	}
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stats.db")

	sink, err := NewSQLite(ctx, path, "run-a")
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()
	other, err := NewSQLite(ctx, path, "run-b")
	if err != nil {
		t.Fatal(err)
	}
	defer other.Close()

	for i := 0; i < 4; i++ {
		stats := map[string]float64{"kl": float64(i) / 10, "entropy": 1}
		if err := sink.Record(i, stats); err != nil {
			t.Fatal(err)
		}
	}
	if err := other.Record(0, map[string]float64{"kl": 9}); err != nil {
		t.Fatal(err)
	}

	// Recording an iteration again overwrites it
	if err := sink.Record(3, map[string]float64{"kl": 0.5}); err != nil {
		t.Fatal(err)
	}

	kl, err := sink.Series("kl")
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{0, 0.1, 0.2, 0.5}; !floats.Equal(kl, want) {
		t.Errorf("have kl series %v, want %v", kl, want)
	}

	otherKL, err := other.Series("kl")
	if err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(otherKL, []float64{9}) {
		t.Errorf("have kl series %v for second run, want [9]", otherKL)
	}

	missing, err := sink.Series("missing")
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 0 {
		t.Errorf("have %v values for a missing statistic", len(missing))
	}
}

func TestSQLiteValidation(t *testing.T) {
	if _, err := NewSQLite(context.Background(), "", "run"); err == nil {
		t.Error("expected an error for an empty path")
	}
	path := filepath.Join(t.TempDir(), "stats.db")
	if _, err := NewSQLite(context.Background(), path, ""); err == nil {
		t.Error("expected an error for an empty run id")
	}
}

// failing is a Sink that always fails to record
type failing struct {
	records int
}

func (f *failing) Record(int, map[string]float64) error {
	f.records++
	return errors.New("disk full")
}

func (f *failing) Close() error {
	return errors.New("already closed")
}

func TestMulti(t *testing.T) {
	var buf bytes.Buffer
	gob := NewGob(filepath.Join(t.TempDir(), "stats.bin"))
	sink := Multi(NewLog(log.New(&buf, "", 0)), gob)

	if err := sink.Record(0, map[string]float64{"kl": 1}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "kl: 1") {
		t.Errorf("log sink did not record: %q", buf.String())
	}
	if len(gob.records) != 1 {
		t.Errorf("gob sink has %v records, want 1", len(gob.records))
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	f := &failing{}
	sink = Multi(f, NewGob(filepath.Join(t.TempDir(), "other.bin")))
	if err := sink.Record(0, nil); err == nil {
		t.Error("expected the failing sink's error")
	}
	if err := sink.Close(); err == nil {
		t.Error("expected the failing sink's close error")
	}
}
