package metrics

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Record is the set of statistics emitted on a single iteration
type Record struct {
	Iteration int
	Stats     map[string]float64
}

// Gob implements a Sink that caches statistics in memory and saves
// them with gob to a file when closed
type Gob struct {
	filename string
	records  []Record
	closed   bool
}

// NewGob returns a new Gob Sink saving to filename
func NewGob(filename string) *Gob {
	return &Gob{filename: filename}
}

// Record caches the statistics of an iteration
func (g *Gob) Record(iteration int, stats map[string]float64) error {
	if g.closed {
		return fmt.Errorf("record: sink closed")
	}

	copied := make(map[string]float64, len(stats))
	for name, value := range stats {
		copied[name] = value
	}
	g.records = append(g.records, Record{Iteration: iteration, Stats: copied})
	return nil
}

// Close saves all cached statistics to disk
func (g *Gob) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true

	file, err := os.Create(g.filename)
	if err != nil {
		return fmt.Errorf("close: could not open save file: %v", err)
	}
	defer file.Close()

	enc := gob.NewEncoder(file)
	if err := enc.Encode(g.records); err != nil {
		return fmt.Errorf("close: could not encode statistics: %v", err)
	}
	return nil
}

// LoadGob loads the statistics saved by a Gob Sink
func LoadGob(filename string) ([]Record, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("loadGob: could not open data file: %v", err)
	}
	defer file.Close()

	var records []Record
	if err := gob.NewDecoder(file).Decode(&records); err != nil {
		return nil, fmt.Errorf("loadGob: could not decode data: %v", err)
	}
	return records, nil
}
