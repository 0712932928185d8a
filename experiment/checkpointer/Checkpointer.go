// Package checkpointer implements saving and restoring parameter
// stores during an experiment
package checkpointer

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/samuelfneumann/gotrpo/params"
)

// Checkpointer checkpoints parameter stores based on the number of
// updates performed
type Checkpointer interface {
	Checkpoint(iteration int) error
}

// Save gob encodes stores to filename
func Save(filename string, stores ...*params.Store) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: could not open checkpoint file: %v", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(stores); err != nil {
		return fmt.Errorf("save: could not encode checkpoint: %v", err)
	}
	return nil
}

// Load restores stores from the checkpoint saved at filename. Each
// store is restored from the saved store with the same name.
func Load(filename string, stores ...*params.Store) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("load: could not open checkpoint file: %v", err)
	}
	defer file.Close()

	var saved []*params.Store
	if err := gob.NewDecoder(file).Decode(&saved); err != nil {
		return fmt.Errorf("load: could not decode checkpoint: %v", err)
	}

	byName := make(map[string]*params.Store, len(saved))
	for _, s := range saved {
		byName[s.Name()] = s
	}
	for _, s := range stores {
		from, ok := byName[s.Name()]
		if !ok {
			return fmt.Errorf("load: no parameters named %v in %v", s.Name(),
				filename)
		}
		if err := s.Set(from.Vector()); err != nil {
			return fmt.Errorf("load: %v: %v", s.Name(), err)
		}
	}
	return nil
}
