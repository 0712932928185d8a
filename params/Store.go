// Package params implements flat parameter stores that hold the
// trainable weights of policies, value functions and their target
// copies outside of any computational graph.
package params

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Store holds a flat vector of parameters. Components that need
// parameters read them through Vector or Snapshot and write them back
// through Set, so that a single owner can version and restore them.
type Store struct {
	name   string
	params *mat.VecDense
}

// New returns a new Store called name holding a copy of init.
func New(name string, init mat.Vector) *Store {
	params := mat.NewVecDense(init.Len(), nil)
	params.CopyVec(init)

	return &Store{name: name, params: params}
}

// Zeroes returns a new Store called name with n parameters all set
// to 0.
func Zeroes(name string, n int) *Store {
	return &Store{name: name, params: mat.NewVecDense(n, nil)}
}

// Name returns the name of the Store
func (s *Store) Name() string {
	return s.name
}

// Len returns the number of parameters in the Store
func (s *Store) Len() int {
	return s.params.Len()
}

// Vector returns a view of the parameters. Changes made to the
// returned vector are reflected in the Store.
func (s *Store) Vector() *mat.VecDense {
	return s.params
}

// Snapshot returns a copy of the current parameters
func (s *Store) Snapshot() *mat.VecDense {
	snap := mat.NewVecDense(s.params.Len(), nil)
	snap.CopyVec(s.params)
	return snap
}

// Set overwrites the parameters with those of v. The copy is exact, so
// that setting a Snapshot restores the Store bit for bit.
func (s *Store) Set(v mat.Vector) error {
	if v.Len() != s.params.Len() {
		return fmt.Errorf("set: illegal parameter vector length "+
			"\n\twant(%v)\n\thave(%v)", s.params.Len(), v.Len())
	}
	s.params.CopyVec(v)
	return nil
}

// AddScaled sets the parameters to θ + alpha * v
func (s *Store) AddScaled(alpha float64, v mat.Vector) error {
	if v.Len() != s.params.Len() {
		return fmt.Errorf("addScaled: illegal vector length "+
			"\n\twant(%v)\n\thave(%v)", s.params.Len(), v.Len())
	}
	s.params.AddScaledVec(s.params, alpha, v)
	return nil
}

// Slice returns a view of the parameters in [i, k)
func (s *Store) Slice(i, k int) *mat.VecDense {
	return s.params.SliceVec(i, k).(*mat.VecDense)
}

// Polyak performs a Polyak average of the Store's parameters with
// those of source: θ ← polyak * θ + (1 - polyak) * θ_source.
func (s *Store) Polyak(source *Store, polyak float64) error {
	if source.Len() != s.Len() {
		return fmt.Errorf("polyak: stores have different lengths "+
			"\n\twant(%v)\n\thave(%v)", s.Len(), source.Len())
	}
	if polyak < 0 || polyak > 1 {
		return fmt.Errorf("polyak: polyak coefficient must be in [0, 1]")
	}

	s.params.ScaleVec(polyak, s.params)
	s.params.AddScaledVec(s.params, 1-polyak, source.params)
	return nil
}

// IsFinite returns whether all parameters are finite
func (s *Store) IsFinite() bool {
	return IsFinite(s.params)
}

// IsFinite returns whether all elements of v are finite
func IsFinite(v mat.Vector) bool {
	for i := 0; i < v.Len(); i++ {
		x := v.AtVec(i)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// GobEncode implements the gob.GobEncoder interface
func (s *Store) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(s.name); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode name: %v", err)
	}
	if err := enc.Encode(s.params.RawVector().Data); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode parameters: %v",
			err)
	}

	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface
func (s *Store) GobDecode(in []byte) error {
	buf := bytes.NewReader(in)
	dec := gob.NewDecoder(buf)

	var name string
	if err := dec.Decode(&name); err != nil {
		return fmt.Errorf("gobdecode: could not decode name: %v", err)
	}

	var data []float64
	if err := dec.Decode(&data); err != nil {
		return fmt.Errorf("gobdecode: could not decode parameters: %v", err)
	}

	s.name = name
	if len(data) == 0 {
		s.params = &mat.VecDense{}
		return nil
	}
	s.params = mat.NewVecDense(len(data), data)
	return nil
}
