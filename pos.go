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
)

//-------------------------------------------------------------------
// PosLLH
//-------------------------------------------------------------------

type PosLLH struct {
	Lat float64
	Lon float64
	Hei float64
}

func (llh *PosLLH) ToXYZ() PosXYZ {
	// Ellipsoid parameters
	f := Fe                     // Flattening
	a := Re                     // Semi-major axis
	e := math.Sqrt(f * (2 - f)) // Eccentricity

	// Conversion to Cartesian coordinates
	n := a / math.Sqrt(1-e*e*math.Sin(llh.Lat)*math.Sin(llh.Lat))
	return PosXYZ{
		X: (n + llh.Hei) * math.Cos(llh.Lat) * math.Cos(llh.Lon),
		Y: (n + llh.Hei) * math.Cos(llh.Lat) * math.Sin(llh.Lon),
		Z: (n*(1-e*e) + llh.Hei) * math.Sin(llh.Lat),
	}
}

// Convert to string
func (llh *PosLLH) String() string {
	return fmt.Sprintf("%.8f %.8f %.4f", llh.Lat, llh.Lon, llh.Hei)
}

//-------------------------------------------------------------------
// PosXYZ
//-------------------------------------------------------------------

type PosXYZ struct {
	X float64
	Y float64
	Z float64
}

func NewPosXYZ(x, y, z float64) *PosXYZ {
	return &PosXYZ{
		X: x,
		Y: y,
		Z: z,
	}
}

func (pos *PosXYZ) ToLLH() PosLLH {
	// In case of origin
	if pos.X == 0 && pos.Y == 0 && pos.Z == 0 {
		return PosLLH{Lat: 0, Lon: 0, Hei: -Re}
	}

	// Ellipsoid parameters
	f := Fe                     // Flattening
	a := Re                     // Semi-major axis
	b := a * (1 - f)            // Semi-minor axis
	e := math.Sqrt(f * (2 - f)) // Eccentricity

	// Parameters for coordinate transformation
	h := a*a - b*b
	p := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y)
	t := math.Atan2(pos.Z*a, p*b)
	sint := math.Sin(t)
	cost := math.Cos(t)

	// Conversion to latitude and longitude
	lat := math.Atan2(pos.Z+h/b*sint*sint*sint, p-h/a*cost*cost*cost)
	lon := math.Atan2(pos.Y, pos.X)
	n := a / math.Sqrt(1-e*e*math.Sin(lat)*math.Sin(lat)) // Radius of curvature in the prime vertical
	hei := p/math.Cos(lat) - n
	return PosLLH{Lat: lat, Lon: lon, Hei: hei}
}

func (pos *PosXYZ) ToENU(base PosXYZ) PosENU {
	// Relative position from the reference location
	x := pos.X - base.X
	y := pos.Y - base.Y
	z := pos.Z - base.Z

	// Latitude and longitude of the reference location
	llh := base.ToLLH()
	s1 := math.Sin(llh.Lon)
	c1 := math.Cos(llh.Lon)
	s2 := math.Sin(llh.Lat)
	c2 := math.Cos(llh.Lat)

	// Rotate the relative position to convert to ENU coordinates
	return PosENU{
		E: -x*s1 + y*c1,
		N: -x*c1*s2 - y*s1*s2 + z*c2,
		U: x*c1*c2 + y*s1*c2 + z*s2,
	}
}

func (usr *PosXYZ) Elevation(sat PosXYZ) float64 {
	// Convert to ENU coordinates to calculate elevation angle
	enu := sat.ToENU(*usr)
	return math.Atan2(enu.U, math.Sqrt(enu.E*enu.E+enu.N*enu.N))
}

func (usr *PosXYZ) Azimuth(sat PosXYZ) float64 {
	// Convert to ENU coordinates to calculate azimuth
	enu := sat.ToENU(*usr)
	return math.Atan2(enu.E, enu.N)
}

// Norm returns the Euclidean norm of the vector.
func (pos *PosXYZ) Norm() float64 {
	return math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
}

//-------------------------------------------------------------------
// PosENU
//-------------------------------------------------------------------

type PosENU struct {
	E float64
	N float64
	U float64
}

func (enu *PosENU) ToXYZ(base PosXYZ) PosXYZ {
	// Latitude and longitude of the reference location
	llh := base.ToLLH()
	s1 := math.Sin(llh.Lon)
	c1 := math.Cos(llh.Lon)
	s2 := math.Sin(llh.Lat)
	c2 := math.Cos(llh.Lat)

	// Rotate the ENU coordinates to convert to relative position
	x := -enu.E*s1 - enu.N*c1*s2 + enu.U*c1*c2
	y := enu.E*c1 - enu.N*s1*s2 + enu.U*s1*c2
	z := enu.N*c2 + enu.U*s2

	// Add to the reference location
	x += base.X
	y += base.Y
	z += base.Z
	return PosXYZ{
		X: x,
		Y: y,
		Z: z,
	}
}

//-------------------------------------------------------------------
// Rotation helpers
//-------------------------------------------------------------------

// enuRotation returns the 3x3 rotation E from ECEF to local ENU at llh,
// row-major (rows are the east, north, up unit vectors).
func enuRotation(llh PosLLH) [9]float64 {
	s1 := math.Sin(llh.Lon)
	c1 := math.Cos(llh.Lon)
	s2 := math.Sin(llh.Lat)
	c2 := math.Cos(llh.Lat)
	return [9]float64{
		-s1, c1, 0,
		-c1 * s2, -s1 * s2, c2,
		c1 * c2, s1 * c2, s2,
	}
}

// ecefToENUVec rotates an ECEF vector into local ENU coordinates at llh.
func ecefToENUVec(llh PosLLH, v [3]float64) [3]float64 {
	e := enuRotation(llh)
	return [3]float64{
		e[0]*v[0] + e[1]*v[1] + e[2]*v[2],
		e[3]*v[0] + e[4]*v[1] + e[5]*v[2],
		e[6]*v[0] + e[7]*v[1] + e[8]*v[2],
	}
}

// covECEF transforms a covariance expressed in local ENU at llh into ECEF:
// Qv = E' Q E.
func covECEF(llh PosLLH, q [9]float64) [9]float64 {
	e := enuRotation(llh)
	var eq, qv [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s := 0.0
			for k := 0; k < 3; k++ {
				s += e[k*3+i] * q[k*3+j]
			}
			eq[i*3+j] = s
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s := 0.0
			for k := 0; k < 3; k++ {
				s += eq[i*3+k] * e[k*3+j]
			}
			qv[i*3+j] = s
		}
	}
	return qv
}
