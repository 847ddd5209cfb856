// Copyright (c) 2026 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.8.27
//

package goppp

import (
	"math"
	"time"
)

type GTime struct {
	Week int
	Sec  float64
}

func NewGTime(dt time.Time) *GTime {
	t := dt.Unix()
	t -= time.Date(1980, 1, 6, 0, 0, 0, 0, time.UTC).Unix() // Elapsed seconds since 1980/1/6 00:00:00
	return &GTime{
		Week: int(t / (3600 * 24 * 7)),
		Sec:  float64(t%(3600*24*7)) + float64(dt.Nanosecond())/1000000000,
	}
}

func (p *GTime) ToTime() time.Time {
	o := time.Date(1980, 1, 6, 0, 0, 0, 0, time.UTC).Unix() // GPS time starts from 1980/1/6 00:00:00
	i := int64(math.Trunc(p.Sec))
	t := int64(3600*24*7*p.Week) + i + o
	n := int64((p.Sec - float64(i)) * 1e9)
	return time.Unix(t, n) // Unix time is the elapsed seconds since 1970/1/1 00:00:00
}

// Gpst returns the GPS week number and the time of week in seconds.
func (p *GTime) Gpst() (week int, tow float64) {
	return p.Week, p.Sec
}

// Diff returns p - b in seconds.
func (p *GTime) Diff(b GTime) float64 {
	return float64(p.Week-b.Week)*(3600*24*7) + p.Sec - b.Sec
}

func (p *GTime) Less(b GTime, roundSec bool) bool {
	if p.Week == b.Week {
		if roundSec {
			return math.Round(p.Sec) < math.Round(b.Sec)
		} else {
			return p.Sec < b.Sec
		}
	} else {
		return p.Week < b.Week
	}
}

// j2000 is the J2000.0 epoch (2000/1/1 12:00:00) used by the low precision
// solar position model.
var j2000 = *NewGTime(time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC))

func (p *GTime) IsZero() bool {
	return p.Week == 0 && p.Sec == 0
}

// AtDayBoundary reports whether the time of week lies on a 24 h boundary
// within 0.1 s, the condition for a satellite-clock day-boundary jump.
func (p *GTime) AtDayBoundary() bool {
	return int64(math.Floor(p.Sec*10+0.5))%864000 == 0
}
