// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.12
//

// Implements single point positioning (SPP) from aggregated epoch snapshots.

package gnssir

import (
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Calculation constants for SPP processing
const (
	MIN_WEIGHT = 0.001 // Minimum weight value
	SNR_REF    = 50.0  // Reference signal strength for SNR weighting [dB-Hz]
)

// Solution status after classification
type Status int

const (
	StatusNoFix     Status = iota // Fewer than the minimum usable satellites
	StatusUncertain               // Enough satellites, but iteration did not converge
	StatusFixed                   // Converged with enough satellites
)

func (p Status) String() string {
	switch p {
	case StatusNoFix:
		return "No Fix"
	case StatusUncertain:
		return "Uncertain"
	case StatusFixed:
		return "Fixed"
	default:
		return "UNKNOWN!"
	}
}

// Classify maps the solve outcome to a status. It is a pure function of the
// convergence flag and the usable satellite count; a short satellite count
// overrides convergence.
func Classify(converged bool, nsats, minSats int) Status {
	switch {
	case nsats < minSats:
		return StatusNoFix
	case converged:
		return StatusFixed
	default:
		return StatusUncertain
	}
}

// SolveOpt contains options and parameters for the SPP calculation
type SolveOpt struct {
	WghMode   WeightMode // Weighting scheme for the observation equations
	ElMask    float64    // Elevation mask [deg]
	MinSats   int        // Minimum usable satellites; below this the solve is skipped
	MaxLoop   int        // Maximum number of iteration loops
	ConvThres float64    // Convergence threshold on the position update [m]
	Ridge     float64    // Regularization added to the normal matrix
}

// NewSolveOpt creates a SolveOpt with default values
func NewSolveOpt() *SolveOpt {
	return &SolveOpt{
		WghMode:   WeightElevation,
		ElMask:    DefaultMinElevation,
		MinSats:   DefaultMinSatellites,
		MaxLoop:   DefaultMaxIterations,
		ConvThres: DefaultConvThreshold,
		Ridge:     DefaultRegularization,
	}
}

// Residual statistics over the satellites used in a solve
type ResidualStats struct {
	Mean float64
	Std  float64
	Max  float64
}

// Solution contains the results of one SPP calculation.
// Immutable once emitted; one per solve.
type Solution struct {
	Time      GTime
	Pos       PosXYZ  // Receiver ECEF position [m]
	LLH       PosLLH  // Receiver geodetic position
	ClockBias float64 // Receiver clock bias [m]

	Cov       [4][4]float64       // Estimation error covariance (sigma0^2 * Q)
	Gdop      float64             // Dilution of precision values
	Pdop      float64
	Hdop      float64
	Vdop      float64
	Tdop      float64
	Residuals map[SatType]float64 // Final residual per satellite [m]
	ResStats  ResidualStats
	Sigma2    float64             // Unit-weight variance sigma0^2

	Sats       []SatType // Satellites used in the solve
	NumSats    int
	Converged  bool
	Iterations int
	Status     Status
}

// One usable pseudorange observation extracted from a snapshot
type candidate struct {
	sat  SatType
	pr   float64 // Pseudorange [m]
	snr  float64 // Signal strength of the chosen signal [dB-Hz]
	elev float64 // Elevation [deg]
	azim float64 // Azimuth [deg]
	pos  PosXYZ  // Satellite ECEF position
}

// Engine runs iterative weighted least squares over epoch snapshots.
// It holds no mutable state between solves and is safe to reuse.
type Engine struct {
	opt *SolveOpt
}

func NewEngine(opt *SolveOpt) *Engine {
	if opt == nil {
		opt = NewSolveOpt()
	}
	return &Engine{opt: opt}
}

// Solve computes a navigation solution from one snapshot, starting at approx.
// Degradations (too few satellites, non-convergence) are encoded in the
// returned solution's Status. Only a singular normal matrix after
// regularization is reported as an error.
func (p *Engine) Solve(snap *EpochSnapshot, approx PosXYZ) (*Solution, error) {

	cands := selectCandidates(snap, p.opt)

	// Not enough satellites: report NoFix without attempting a solve
	if len(cands) < p.opt.MinSats {
		return &Solution{
			Time:    snap.Time,
			NumSats: len(cands),
			Status:  Classify(false, len(cands), p.opt.MinSats),
		}, nil
	}

	// Seed with a Bancroft closed-form fix when no approximate position is
	// known, so a receiver can cold-start from the origin.
	pos := approx
	if pos.IsZero() {
		if seed, err := Bancroft(cands); err == nil {
			pos = seed
		}
	}

	sol, err := p.iterate(cands, pos)
	if err != nil {
		return nil, err
	}
	sol.Time = snap.Time
	return sol, nil
}

// selectCandidates extracts usable observations from the snapshot:
// a known satellite position, elevation above the mask, and at least one
// valid positive pseudorange.
func selectCandidates(snap *EpochSnapshot, opt *SolveOpt) []candidate {
	cands := make([]candidate, 0, len(snap.Sats))
	for _, sat := range snap.Satellites() {
		st := snap.Sats[sat]
		if st.Pos.IsZero() {
			continue
		}
		if st.Elev < opt.ElMask {
			continue
		}

		// First valid pseudorange among the signals, in signal-id order
		ids := make([]SignalID, 0, len(st.Signals))
		for id := range st.Signals {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		found := false
		var cand candidate
		for _, id := range ids {
			sig := st.Signals[id]
			if !sig.Valid || sig.Pseudorange <= 0 {
				continue
			}
			cand = candidate{
				sat:  sat,
				pr:   sig.Pseudorange,
				snr:  sig.Snr,
				elev: st.Elev,
				azim: st.Azim,
				pos:  st.Pos,
			}
			found = true
			break
		}
		if found {
			cands = append(cands, cand)
		}
	}
	return cands
}

// iterate runs Gauss-Newton weighted least squares from pos with zero
// initial clock bias, then computes the accuracy figures at the last iterate.
func (p *Engine) iterate(cands []candidate, pos PosXYZ) (*Solution, error) {

	n := len(cands)
	clk := 0.0 // Receiver clock bias [m]

	converged := false
	loops := 0

	for loop := 0; loop < p.opt.MaxLoop; loop++ {
		loops = loop + 1

		G, dr, w := buildEquations(cands, pos, clk, p.opt.WghMode)
		W := mat.NewDiagDense(n, w)

		dx, _, err := SolveLS(G, dr, W, p.opt.Ridge)
		if err != nil {
			return nil, err
		}

		pos.X += dx.AtVec(0)
		pos.Y += dx.AtVec(1)
		pos.Z += dx.AtVec(2)
		clk += dx.AtVec(3)

		// Convergence test on the position update
		step := math.Sqrt(SQ(dx.AtVec(0)) + SQ(dx.AtVec(1)) + SQ(dx.AtVec(2)))
		if step < p.opt.ConvThres {
			converged = true
			break
		}
	}

	// Final design/weight matrices and residuals at the last iterate
	G, dr, w := buildEquations(cands, pos, clk, p.opt.WghMode)
	W := mat.NewDiagDense(n, w)

	var WG, A mat.Dense
	WG.Mul(W, G)
	A.Mul(G.T(), &WG)
	for i := 0; i < 4; i++ {
		A.Set(i, i, A.At(i, i)+p.opt.Ridge)
	}
	var Q mat.Dense
	if err := Q.Inverse(&A); err != nil {
		return nil, ErrSingularGeometry
	}

	res := make([]float64, n)
	resm := make(map[SatType]float64, n)
	for i, c := range cands {
		res[i] = dr.AtVec(i)
		resm[c.sat] = dr.AtVec(i)
	}

	// Unit-weight variance: sigma0^2 = sum(r^2) / (n - 4)
	sigma2 := 0.0
	if n > 4 {
		for _, r := range res {
			sigma2 += SQ(r)
		}
		sigma2 /= float64(n - 4)
	}

	sol := &Solution{
		Pos:        pos,
		LLH:        pos.ToLLH(),
		ClockBias:  clk,
		Residuals:  resm,
		ResStats:   residualStats(res),
		Sigma2:     sigma2,
		NumSats:    n,
		Converged:  converged,
		Iterations: loops,
		Status:     Classify(converged, n, p.opt.MinSats),
	}
	for _, c := range cands {
		sol.Sats = append(sol.Sats, c.sat)
	}

	// Covariance = sigma0^2 * Q with the final design/weight matrices
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			sol.Cov[i][j] = sigma2 * Q.At(i, j)
		}
	}

	fillDop(sol, &Q)

	return sol, nil
}

// buildEquations sets up the design matrix, residual vector and weights for
// the current iterate. Row i is [-dr_x/rho, -dr_y/rho, -dr_z/rho, 1] with
// the clock bias carried in meters, and the residual is pr - (rho + clk).
func buildEquations(cands []candidate, pos PosXYZ, clk float64, mode WeightMode) (*mat.Dense, *mat.VecDense, []float64) {
	n := len(cands)
	G := mat.NewDense(n, 4, nil)
	dr := mat.NewVecDense(n, nil)
	w := make([]float64, n)

	for i, c := range cands {
		rho := EucDist(&c.pos, &pos)
		if rho > 0 {
			G.Set(i, 0, -(c.pos.X-pos.X)/rho)
			G.Set(i, 1, -(c.pos.Y-pos.Y)/rho)
			G.Set(i, 2, -(c.pos.Z-pos.Z)/rho)
		}
		G.Set(i, 3, 1)
		dr.SetVec(i, c.pr-(rho+clk))
		w[i] = getWeight(mode, c)
	}
	return G, dr, w
}

// getWeight calculates the observation weight for one candidate
func getWeight(mode WeightMode, c candidate) (wg float64) {
	switch mode {
	case WeightEqual:
		wg = 1.0
	case WeightElevation:
		// Higher elevation gives higher weight
		s := math.Sin(ToRad(c.elev))
		if s > 0 {
			wg = SQ(s)
		} else {
			wg = 1.0
		}
	case WeightSnr:
		// Monotonic in SNR, unit weight at the reference strength
		wg = math.Pow(10, (c.snr-SNR_REF)/10)
	default:
		wg = 1.0
	}
	if wg < MIN_WEIGHT {
		wg = MIN_WEIGHT
	}
	return
}

// fillDop derives the DOP values from the cofactor matrix Q, rotating the
// position block into ENU at the solved position for HDOP/VDOP.
func fillDop(sol *Solution, Q *mat.Dense) {
	sol.Gdop = sqrtNN(Q.At(0, 0) + Q.At(1, 1) + Q.At(2, 2) + Q.At(3, 3))
	sol.Pdop = sqrtNN(Q.At(0, 0) + Q.At(1, 1) + Q.At(2, 2))
	sol.Tdop = sqrtNN(Q.At(3, 3))

	// ECEF -> ENU rotation at the receiver latitude/longitude
	s1 := math.Sin(sol.LLH.Lon)
	c1 := math.Cos(sol.LLH.Lon)
	s2 := math.Sin(sol.LLH.Lat)
	c2 := math.Cos(sol.LLH.Lat)
	R := mat.NewDense(3, 3, []float64{
		-s1, c1, 0,
		-s2 * c1, -s2 * s1, c2,
		c2 * c1, c2 * s1, s2,
	})
	Q3 := Q.Slice(0, 3, 0, 3)
	var RQ, Qenu mat.Dense
	RQ.Mul(R, Q3)
	Qenu.Mul(&RQ, R.T())

	sol.Hdop = sqrtNN(Qenu.At(0, 0) + Qenu.At(1, 1))
	sol.Vdop = sqrtNN(Qenu.At(2, 2))
}

func sqrtNN(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}

func residualStats(res []float64) ResidualStats {
	if len(res) == 0 {
		return ResidualStats{}
	}
	maxAbs := 0.0
	for _, r := range res {
		if math.Abs(r) > maxAbs {
			maxAbs = math.Abs(r)
		}
	}
	st := ResidualStats{
		Mean: stat.Mean(res, nil),
		Max:  maxAbs,
	}
	if len(res) > 1 {
		st.Std = stat.StdDev(res, nil)
	}
	return st
}
