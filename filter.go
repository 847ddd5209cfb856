// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.27
//

// Implements the measurement update kernel of the extended Kalman filter.

package goppp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// FilterFunc applies one measurement update to an estimate in place.
// H is the nv x nx design matrix, v the innovation vector and R the
// observation error covariance. Implementations must leave the estimate
// untouched on error.
type FilterFunc func(e *Estimate, H *mat.Dense, v *mat.VecDense, R *mat.Dense) error

// KalmanUpdate is the standard EKF measurement update. The full state vector
// is first compressed to the initialized states (x != 0 and P > 0); the other
// slots carry no information and would make the gain computation singular.
func KalmanUpdate(e *Estimate, H *mat.Dense, v *mat.VecDense, R *mat.Dense) error {
	nx := e.X.Len()
	nv := v.Len()

	// Indices of the initialized states.
	ix := make([]int, 0, nx)
	for i := 0; i < nx; i++ {
		if e.Initialized(i) {
			ix = append(ix, i)
		}
	}
	k := len(ix)
	if k == 0 || nv == 0 {
		return fmt.Errorf("empty filter problem: k=%d nv=%d", k, nv)
	}

	x := mat.NewVecDense(k, nil)
	P := mat.NewDense(k, k, nil)
	Hc := mat.NewDense(nv, k, nil)
	for i, gi := range ix {
		x.SetVec(i, e.X.AtVec(gi))
		for j, gj := range ix {
			P.Set(i, j, e.P.At(gi, gj))
		}
		for r := 0; r < nv; r++ {
			Hc.Set(r, i, H.At(r, gi))
		}
	}

	K, err := makeK(P, Hc, R)
	if err != nil {
		return fmt.Errorf("makeK() failed, err= %s", err.Error())
	}
	xp := updateX(x, K, v)
	Pp := updateP(K, Hc, P)

	// Scatter back into the full state.
	for i, gi := range ix {
		e.X.SetVec(gi, xp.AtVec(i))
		for j, gj := range ix {
			e.P.Set(gi, gj, Pp.At(i, j))
		}
	}
	return nil
}

// makeK calculates Kalman gain K = P H^T (H P H^T + R)^-1
func makeK(P, H, R *mat.Dense) (*mat.Dense, error) {
	var A, B, C, D, K mat.Dense
	A.Mul(H, P)
	B.Mul(&A, H.T())
	C.Add(&B, R)
	if err := C.Inverse(&C); err != nil {
		return nil, fmt.Errorf("innovation covariance is singular, err= %s", err.Error())
	}
	D.Mul(P, H.T())
	K.Mul(&D, &C)
	return &K, nil
}

// updateX calculates x' = x + K v
func updateX(x *mat.VecDense, K *mat.Dense, v *mat.VecDense) *mat.VecDense {
	var dx mat.VecDense
	dx.MulVec(K, v)
	var x2 mat.VecDense
	x2.AddVec(x, &dx)
	return &x2
}

// updateP calculates P' = (I - K H) P
func updateP(K, H, P *mat.Dense) *mat.Dense {
	nx, _ := K.Dims()
	I := mat.NewDense(nx, nx, nil)
	for j := 0; j < nx; j++ {
		I.Set(j, j, 1)
	}
	var A, B, C mat.Dense
	A.Mul(K, H)
	B.Sub(I, &A)
	C.Mul(&B, P)
	return &C
}
