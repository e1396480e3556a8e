// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.4
//

package gnssir

import (
	"math"
	"sort"
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

func ToDeg(rad float64) float64 {
	return rad / PI * 180.0
}

func ToRad(deg float64) float64 {
	return deg / 180.0 * PI
}

// ------------------------------------
// Others
// ------------------------------------

// Sort the list of satellite names (G, J, E, R, C, S order, then PRN)
func Sorted(s []SatType) []SatType {
	s2 := make([]SatType, len(s))
	copy(s2, s)
	sort.Slice(s2, func(i, j int) bool {
		m := map[byte]int{'G': 0, 'J': 1, 'E': 2, 'R': 3, 'C': 4, 'S': 5}
		if m[s2[i][0]] == m[s2[j][0]] {
			return s2[i] < s2[j]
		} else {
			return m[s2[i][0]] < m[s2[j][0]]
		}
	})
	return s2
}
