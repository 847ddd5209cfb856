// This code is adapted from RTKLIB.
// The author gratefully acknowledges T.Takasu for his outstanding contribution in developing RTKLIB.
//
// Last modified: 2026.8.27
//

package goppp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

func sgn(x float64) float64 {
	if x <= 0.0 {
		return -1.0
	} else {
		return 1.0
	}
}

// LD factorization Q = L' diag(D) L (column-major, lower triangular L).
func ld(n int, Q []float64, L []float64, D []float64) error {
	A := make([]float64, n*n)
	copy(A, Q)
	for i := n - 1; i > -1; i-- {
		D[i] = A[i+i*n]
		if D[i] <= 0 {
			return fmt.Errorf("LD factorization error")
		}
		a := math.Sqrt(D[i])
		for j := 0; j < i+1; j++ {
			L[i+j*n] = A[i+j*n] / a
		}
		for j := 0; j < i; j++ {
			for k := 0; k < j+1; k++ {
				A[j+k*n] -= L[i+k*n] * L[i+j*n]
			}
		}
		for j := 0; j < i+1; j++ {
			L[i+j*n] /= L[i+i*n]
		}
	}
	return nil
}

func gauss(n int, L, Z []float64, i, j int) {
	mu := int(math.Round(L[i+j*n]))
	if mu != 0 {
		for k := i; k < n; k++ {
			L[k+n*j] -= float64(mu) * L[k+i*n]
		}
		for k := 0; k < n; k++ {
			Z[k+n*j] -= float64(mu) * Z[k+i*n]
		}
	}
}

func perm(n int, L, D []float64, j int, Del float64, Z []float64) {
	eta := D[j] / Del
	lam := D[j+1] * L[j+1+j*n] / Del
	D[j] = eta * D[j+1]
	D[j+1] = Del
	for k := 0; k < j; k++ {
		a0 := L[j+k*n]
		a1 := L[j+1+k*n]
		L[j+k*n] = -L[j+1+j*n]*a0 + a1
		L[j+1+k*n] = eta*a0 + lam*a1
	}
	L[j+1+j*n] = lam
	for k := j + 2; k < n; k++ {
		L[k+j*n], L[k+(j+1)*n] = L[k+(j+1)*n], L[k+j*n]
	}
	for k := 0; k < n; k++ {
		Z[k+j*n], Z[k+(j+1)*n] = Z[k+(j+1)*n], Z[k+j*n]
	}
}

// Lambda (integer Gauss) reduction.
func reduction(n int, L, D, Z []float64) {
	j := n - 2
	k := n - 2
	for j >= 0 {
		if j <= k {
			for i := j + 1; i < n; i++ {
				gauss(n, L, Z, i, j)
			}
		}
		Del := D[j] + L[j+1+j*n]*L[j+1+j*n]*D[j+1]
		if (Del + 1e-6) < D[j+1] {
			perm(n, L, D, j, Del, Z)
			k = j
			j = n - 2
		} else {
			j -= 1
		}
	}
}

// Modified Lenstra-Lenstra-Lovasz search for the m best integer candidates.
func search(n, m int, L, D []float64, zs, zn, s []float64) error {
	const LOOPMAX = 2000000
	nn := 0
	imax := 0
	maxdist := 1e99
	S := make([]float64, n*n)
	dist := make([]float64, n)
	zb := make([]float64, n)
	z := make([]float64, n)
	step := make([]float64, n)
	k := n - 1
	dist[k] = 0.0
	zb[k] = zs[k]
	z[k] = math.Round(zb[k])
	y := zb[k] - z[k]
	step[k] = sgn(y)
	c := 0
	for c = 0; c < LOOPMAX; c++ {
		newdist := dist[k] + y*y/D[k]
		if newdist < maxdist {
			if k != 0 {
				k -= 1
				dist[k] = newdist
				for i := 0; i < k+1; i++ {
					S[k+i*n] = S[k+1+i*n] + (z[k+1]-zb[k+1])*L[k+1+i*n]
				}
				zb[k] = zs[k] + S[k+k*n]
				z[k] = math.Round(zb[k])
				y = zb[k] - z[k]
				step[k] = sgn(y)
			} else {
				if nn < m {
					if nn == 0 || newdist > s[imax] {
						imax = nn
					}
					for i := 0; i < n; i++ {
						zn[i+nn*n] = z[i]
					}
					s[nn] = newdist
					nn += 1
				} else {
					if newdist < s[imax] {
						for i := 0; i < n; i++ {
							zn[i+imax*n] = z[i]
						}
						s[imax] = newdist
						imax = 0
						for i := 0; i < m; i++ {
							if s[imax] < s[i] {
								imax = i
							}
						}
					}
					maxdist = s[imax]
				}
				z[0] += step[0]
				y = zb[0] - z[0]
				step[0] = -step[0] - sgn(step[0])
			}
		} else {
			if k == n-1 {
				break
			} else {
				k += 1
				z[k] += step[k]
				y = zb[k] - z[k]
				step[k] = -step[k] - sgn(step[k])
			}
		}
	}
	for i := 0; i < m-1; i++ {
		for j := i + 1; j < m; j++ {
			if s[i] < s[j] {
				continue
			}
			s[i], s[j] = s[j], s[i]
			for k := 0; k < n; k++ {
				zn[k+i*n], zn[k+j*n] = zn[k+j*n], zn[k+i*n]
			}
		}
	}
	if c >= LOOPMAX {
		return fmt.Errorf("search loop count overflow")
	}
	return nil
}

// LAMBDA computes the m best integer candidates F (column-major n x m) for
// the float ambiguities a with covariance Q (column-major n x n), with their
// squared residual norms in s.
func LAMBDA(n, m int, a, Q, F, s []float64) error {
	if n <= 0 || m <= 0 {
		return fmt.Errorf("n <= 0 || m <= 0")
	}
	L := make([]float64, n*n)
	D := make([]float64, n)
	Z := make([]float64, n*n)
	for i := 0; i < n; i++ {
		Z[i+i*n] = 1.0
	}
	if err := ld(n, Q, L, D); err != nil {
		return err
	}
	reduction(n, L, D, Z)

	// z = Z' a
	z := make([]float64, n)
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			z[i] += Z[k+i*n] * a[k]
		}
	}
	E := make([]float64, n*m)
	if err := search(n, m, L, D, z, E, s); err != nil {
		return err
	}
	// Back-transform: F = Z'^-1 E.
	Zt := mat.NewDense(n, n, nil)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			Zt.Set(r, c, Z[c+r*n])
		}
	}
	Em := mat.NewDense(n, m, nil)
	for r := 0; r < n; r++ {
		for c := 0; c < m; c++ {
			Em.Set(r, c, E[r+c*n])
		}
	}
	var Fm mat.Dense
	if err := Fm.Solve(Zt, Em); err != nil {
		return fmt.Errorf("back-transformation failed, err= %s", err.Error())
	}
	for r := 0; r < n; r++ {
		for c := 0; c < m; c++ {
			F[r+c*n] = Fm.At(r, c)
		}
	}
	return nil
}
