// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.2
//

package gnssir

const (
	PI = 3.1415926535897932  // Pi
	C  = 2.99792458e8        // Speed of light [m/s]
	Re = 6378137.0           // Earth's semi-major axis, WGS84 [m]
	Fe = 1.0 / 298.257223563 // Earth's flattening, WGS84
)

// Solver defaults
const (
	DefaultMinSatellites  = 4    // Minimum usable satellites for a solve
	DefaultMinElevation   = 10.0 // Elevation mask for the solver [deg]
	DefaultMaxIterations  = 10   // Maximum Gauss-Newton iterations
	DefaultConvThreshold  = 1e-4 // Position update convergence threshold [m]
	DefaultRegularization = 1e-6 // Ridge term added to the normal matrix
)

// Store and pipeline defaults
const (
	DefaultKeepSeconds  = 900.0 // Observable retention window [s]
	DefaultMaxElevation = 90.0  // Upper elevation bound for the store [deg]
	DefaultStaleAfter   = 5.0   // Satellite staleness window [s]
	DefaultTickMillis   = 300   // Refresh cadence [ms]
	DefaultBufferCap    = 1000  // Per-stream ring buffer capacity
)
