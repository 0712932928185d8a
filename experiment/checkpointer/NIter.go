package checkpointer

import "github.com/samuelfneumann/gotrpo/params"

// nIter implements checkpointing every N iterations
type nIter struct {
	interval int
	stores   []*params.Store

	// filename returns the filename of the next checkpoint. To save
	// each checkpoint in a separate, numbered file use
	// FilenameEnumerator.
	filename func() string
}

// NewNIter returns a checkpointer that saves stores every n
// iterations
func NewNIter(n int, filename func() string,
	stores ...*params.Store) Checkpointer {
	return &nIter{
		interval: n,
		stores:   stores,
		filename: filename,
	}
}

// Checkpoint saves the tracked stores if iteration is a multiple of
// the checkpointing interval
func (n *nIter) Checkpoint(iteration int) error {
	if n.interval > 0 && iteration%n.interval == 0 {
		return Save(n.filename(), n.stores...)
	}
	return nil
}
