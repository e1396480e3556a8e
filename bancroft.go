// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.12
//

// Closed-form receiver position from pseudoranges (Bancroft, 1985).
// Used to seed the iterative solver when no approximate position is known.

package gnssir

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Bancroft estimates the receiver position algebraically from at least four
// candidates. The result is coarse (no corrections applied) but close enough
// to start Gauss-Newton iteration from.
func Bancroft(cands []candidate) (PosXYZ, error) {
	n := len(cands)
	if n < 4 {
		return PosXYZ{}, fmt.Errorf("not enough satellites for Bancroft: %d", n)
	}

	// A  = (a1, a2, ..., an)' with ai = (xi, yi, zi, pri)
	// i0 = (1, 1, ..., 1)'
	// r  = (r1, ..., rn)' with ri = <ai,ai>/2 under the Minkowski functional
	A := mat.NewDense(n, 4, nil)
	r := mat.NewVecDense(n, nil)
	i0 := mat.NewVecDense(n, nil)
	for i, c := range cands {
		A.Set(i, 0, c.pos.X)
		A.Set(i, 1, c.pos.Y)
		A.Set(i, 2, c.pos.Z)
		A.Set(i, 3, c.pr)
		r.SetVec(i, 0.5*(SQ(c.pos.X)+SQ(c.pos.Y)+SQ(c.pos.Z)-SQ(c.pr)))
		i0.SetVec(i, 1)
	}

	// Generalized inverse B = (A'A)^-1 A'
	var AtA, AtAi, B mat.Dense
	AtA.Mul(A.T(), A)
	if err := AtAi.Inverse(&AtA); err != nil {
		return PosXYZ{}, fmt.Errorf("%w: %v", ErrSingularGeometry, err)
	}
	B.Mul(&AtAi, A.T())

	var u, v mat.VecDense
	u.MulVec(&B, i0)
	v.MulVec(&B, r)

	// <u,u> lam^2 + 2(<u,v> - 1) lam + <v,v> = 0
	a := minkowski4(&u, &u)
	b := minkowski4(&u, &v) - 1
	c := minkowski4(&v, &v)
	disc := b*b - a*c
	if disc < 0 || a == 0 {
		return PosXYZ{}, fmt.Errorf("bancroft quadratic has no real solution")
	}
	lam1 := (-b + math.Sqrt(disc)) / a
	lam2 := (-b - math.Sqrt(disc)) / a

	// Of the two roots, keep the one closer to the Earth's surface
	s1 := bancroftSolution(lam1, &u, &v)
	s2 := bancroftSolution(lam2, &u, &v)
	d1 := math.Abs(Re - math.Sqrt(SQ(s1.X)+SQ(s1.Y)+SQ(s1.Z)))
	d2 := math.Abs(Re - math.Sqrt(SQ(s2.X)+SQ(s2.Y)+SQ(s2.Z)))
	if d2 < d1 {
		return s2, nil
	}
	return s1, nil
}

func bancroftSolution(lam float64, u, v *mat.VecDense) PosXYZ {
	return PosXYZ{
		X: lam*u.AtVec(0) + v.AtVec(0),
		Y: lam*u.AtVec(1) + v.AtVec(1),
		Z: lam*u.AtVec(2) + v.AtVec(2),
	}
}

// Minkowski functional for (x, y, z, ct) vectors:
// <a,b> = a1*b1 + a2*b2 + a3*b3 - a4*b4
func minkowski4(a, b *mat.VecDense) float64 {
	return a.AtVec(0)*b.AtVec(0) + a.AtVec(1)*b.AtVec(1) + a.AtVec(2)*b.AtVec(2) - a.AtVec(3)*b.AtVec(3)
}
