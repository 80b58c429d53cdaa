package geostat

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// solveSystem solves a·x = b by LU decomposition. ok is false when a is
// singular or too ill-conditioned for the solution to be trusted; cond is the
// estimated condition number either way.
func solveSystem(a *mat.Dense, b *mat.VecDense) (x *mat.VecDense, cond float64, ok bool) {
	var lu mat.LU
	lu.Factorize(a)

	cond = lu.Cond()
	if math.IsInf(cond, 1) || math.IsNaN(cond) || cond >= mat.ConditionTolerance {
		return nil, cond, false
	}

	n, _ := a.Dims()
	x = mat.NewVecDense(n, nil)
	if err := lu.SolveVecTo(x, false, b); err != nil {
		return nil, cond, false
	}
	for i := 0; i < n; i++ {
		if !isFinite(x.AtVec(i)) {
			return nil, cond, false
		}
	}
	return x, cond, true
}
