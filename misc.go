// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.27
//

package goppp

import (
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
)

// ------------------------------------
// Mini functions
// ------------------------------------

func SQ(x float64) float64 {
	return x * x
}

func EucDist(a, b *PosXYZ) float64 {
	return math.Sqrt(SQ(a.X-b.X) + SQ(a.Y-b.Y) + SQ(a.Z-b.Z))
}

func DistDx(a, b *PosXYZ) float64 {
	return (b.X - a.X) / EucDist(a, b)
}

func DistDy(a, b *PosXYZ) float64 {
	return (b.Y - a.Y) / EucDist(a, b)
}

func DistDz(a, b *PosXYZ) float64 {
	return (b.Z - a.Z) / EucDist(a, b)
}

func ToDeg(rad float64) float64 {
	return rad / PI * 180.0
}

func ToRad(deg float64) float64 {
	return deg / 180.0 * PI
}

// ------------------------------------
// 3-vector helpers
// ------------------------------------

func dot3(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func norm3(a [3]float64) float64 {
	return math.Sqrt(dot3(a, a))
}

func cross3(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// normv3 returns the unit vector of a, or false if a is (near) zero.
func normv3(a [3]float64) ([3]float64, bool) {
	n := norm3(a)
	if n <= 0.0 {
		return [3]float64{}, false
	}
	return [3]float64{a[0] / n, a[1] / n, a[2] / n}, true
}

// ------------------------------------
// Debug print function
// ------------------------------------

func PrintMat(X mat.Matrix) {
	r, c := X.Dims()
	fmt.Fprintf(os.Stderr, "(%d x %d)\n", r, c)
	fa := mat.Formatted(X, mat.Prefix(""), mat.Squeeze())
	fmt.Fprintf(os.Stderr, "%v\n", fa)
}

func PrintA(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format, a...)
}

func PrintAIf(cond bool, format string, a ...any) {
	if cond {
		PrintA(format, a...)
	}
}

func PrintB(t GTime, format string, a ...any) {
	fmt.Fprintf(os.Stderr, t.ToTime().UTC().Format("2006-01-02T15:04:05.000000")+"\t"+format, a...)
}

// Debug display level
var DBG_ int

// Debug display
func PrintD(v int, format string, a ...any) {
	PrintAIf(DBG_ >= v, format, a...)
}

func PrintE(err error) {
	fmt.Fprintf(os.Stderr, "err=%s\n", err.Error())
}
