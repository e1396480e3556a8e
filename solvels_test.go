// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.18
//

package gnssir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	m "github.com/mkhts/gnssir"
)

func Test_solveLSExact(t *testing.T) {
	assert := assert.New(t)

	// Square, well-conditioned system: the LS solution is the exact one
	G := mat.NewDense(4, 4, []float64{
		1, 0, 0, 1,
		0, 1, 0, 1,
		0, 0, 1, 1,
		1, 1, 1, 1,
	})
	want := []float64{1.5, -2.0, 0.5, 3.0}
	dr := mat.NewVecDense(4, nil)
	for i := 0; i < 4; i++ {
		s := 0.0
		for j := 0; j < 4; j++ {
			s += G.At(i, j) * want[j]
		}
		dr.SetVec(i, s)
	}
	W := mat.NewDiagDense(4, []float64{1, 1, 1, 1})

	dx, cov, err := m.SolveLS(G, dr, W, 0)
	require.NoError(t, err)
	require.NotNil(t, cov)
	for i, w := range want {
		assert.InDelta(w, dx.AtVec(i), 1e-9)
	}
}

func Test_solveLSWeighted(t *testing.T) {
	assert := assert.New(t)

	// Two inconsistent scalar measurements: the weighted estimate sits at
	// the weighted mean
	G := mat.NewDense(2, 1, []float64{1, 1})
	dr := mat.NewVecDense(2, []float64{10, 20})
	W := mat.NewDiagDense(2, []float64{3, 1})

	dx, _, err := m.SolveLS(G, dr, W, 0)
	require.NoError(t, err)
	assert.InDelta(12.5, dx.AtVec(0), 1e-9)
}

func Test_solveLSSingular(t *testing.T) {
	assert := assert.New(t)

	// Rank-deficient design matrix without regularization
	G := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
	dr := mat.NewVecDense(2, []float64{1, 1})
	W := mat.NewDiagDense(2, []float64{1, 1})

	_, _, err := m.SolveLS(G, dr, W, 0)
	assert.ErrorIs(err, m.ErrSingularGeometry)
}
