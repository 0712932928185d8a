// Package matutils implements utility function for working with mat.Matrix
// structs
package matutils

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// HStack returns the matrix [a b], with the columns of b following
// those of a. Both matrices must have the same number of rows.
func HStack(a, b mat.Matrix) *mat.Dense {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ra != rb {
		panic(fmt.Sprintf("hStack: row mismatch %v != %v", ra, rb))
	}

	out := mat.NewDense(ra, ca+cb, nil)
	out.Slice(0, ra, 0, ca).(*mat.Dense).Copy(a)
	out.Slice(0, ra, ca, ca+cb).(*mat.Dense).Copy(b)
	return out
}

// RowOf returns a 1 × v.Len() matrix holding a copy of v
func RowOf(v mat.Vector) *mat.Dense {
	return mat.NewDense(1, v.Len(), mat.Col(nil, 0, v))
}
