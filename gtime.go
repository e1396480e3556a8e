// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.2
//

package gnssir

import (
	"math"
	"time"
)

// GPS time as week number and seconds of week
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

func (p *GTime) Less(b GTime) bool {
	if p.Week == b.Week {
		return p.Sec < b.Sec
	}
	return p.Week < b.Week
}

// Seconds from b to p, accounting for week rollover
func (p *GTime) Sub(b GTime) float64 {
	return float64(p.Week-b.Week)*3600*24*7 + p.Sec - b.Sec
}

// Add sec seconds, normalizing the week number
func (p *GTime) Add(sec float64) GTime {
	t := GTime{Week: p.Week, Sec: p.Sec + sec}
	for t.Sec >= 3600*24*7 {
		t.Sec -= 3600 * 24 * 7
		t.Week++
	}
	for t.Sec < 0 {
		t.Sec += 3600 * 24 * 7
		t.Week--
	}
	return t
}
