// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.4
//

package gnssir

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrSingularGeometry is returned when the regularized normal matrix is still
// numerically singular (for example, all candidate satellites nearly coplanar
// with the receiver). Callers get this error instead of a NaN-bearing result.
var ErrSingularGeometry = errors.New("singular normal matrix")

// Solve the observation equation using weighted least squares
// - dx = (G^t W G + ridge*I)^-1 G^t W dr
// - Return the cofactor matrix (G^t W G + ridge*I)^-1 as cov
//
// The ridge term guards against near-singular geometry; pass 0 to disable.
func SolveLS(G mat.Matrix, dr mat.Vector, W mat.Matrix, ridge float64) (dx mat.Vector, cov mat.Matrix, err error) {

	n1, m1 := G.Dims()
	n2, m2 := W.Dims()
	if n1 != n2 {
		return nil, nil, fmt.Errorf("invalid matrix size. G(%d x %d), W(%d x %d)", n1, m1, n2, m2)
	}
	l1 := dr.Len()
	if l1 != m2 {
		return nil, nil, fmt.Errorf("invalid matrix size. W(%d x %d), dr(%d x 1)", n2, m2, l1)
	}

	// A（G^t W G + ridge*I)
	var WG mat.Dense
	WG.Mul(W, G)
	var A mat.Dense
	A.Mul(G.T(), &WG)
	if ridge > 0 {
		for i := 0; i < m1; i++ {
			A.Set(i, i, A.At(i, i)+ridge)
		}
	}

	// b（G^t W dr）
	var GtW mat.Dense
	GtW.Mul(G.T(), W)
	var b mat.VecDense
	b.MulVec(&GtW, dr)

	// Solve for x (x = A^-1 b)
	var x mat.VecDense
	if err = x.SolveVec(&A, &b); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSingularGeometry, err)
	}
	dx = &x

	// Set (G^T W G + ridge*I)^-1 as the cofactor matrix
	var c mat.Dense
	if err = c.Inverse(&A); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSingularGeometry, err)
	}
	cov = &c

	return
}
