// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.16
//

// Wires the ingestion buffers, aggregator, positioning engine and IR store
// into one processing pipeline.
//
// One producer per stream pushes decoded records into that stream's ring
// buffer; one consumer goroutine per stream drains it and forwards records
// over a single channel to the owner goroutine. The owner applies updates
// and, on a fixed tick, runs prune -> snapshot -> solve -> store
// sequentially. Aggregator state, snapshots and the store are therefore
// mutated by exactly one goroutine; everything handed out is an immutable
// copy behind an atomic pointer.

package gnssir

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// StreamStats reports one ingestion buffer's health.
type StreamStats struct {
	Ingested uint64 // Records forwarded to the aggregator
	Drops    uint64 // Entries overwritten in the ring buffer
	Len      int    // Entries currently buffered
}

// SolveStats accumulates solve outcomes across the run so sustained
// degradation is visible without log-scraping.
type SolveStats struct {
	TotalEpochs    int
	FixedCount     int
	UncertainCount int
	NoFixCount     int
	SingularCount  int
	LastStatus     Status
}

// FixRate returns the percentage of epochs classified Fixed.
func (p *SolveStats) FixRate() float64 {
	if p.TotalEpochs == 0 {
		return 0
	}
	return 100 * float64(p.FixedCount) / float64(p.TotalEpochs)
}

func (p *SolveStats) update(status Status) {
	p.TotalEpochs++
	switch status {
	case StatusFixed:
		p.FixedCount++
	case StatusUncertain:
		p.UncertainCount++
	default:
		p.NoFixCount++
	}
	p.LastStatus = status
}

// PipelineStats is the per-cycle observability surface of the pipeline.
type PipelineStats struct {
	Streams map[string]StreamStats
	Solve   SolveStats
}

// Pipeline owns the processing chain for a set of input streams.
type Pipeline struct {
	cfg    *Config
	log    *slog.Logger
	engine *Engine
	agg    *Aggregator
	store  *IrStore

	bufs     map[string]*RingBuffer[UpdateRecord]
	ingested map[string]*atomic.Uint64
	updates  chan UpdateRecord

	snap atomic.Pointer[EpochSnapshot]
	sol  atomic.Pointer[Solution]

	statsMu sync.Mutex
	stats   SolveStats

	// The store is single-owner for writes; this guards the read path only.
	storeMu sync.Mutex

	seedPos PosXYZ // next solve's starting position, owner goroutine only

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPipeline validates cfg and builds the pipeline. The logger may be nil.
func NewPipeline(cfg *Config, log *slog.Logger) (*Pipeline, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}

	opt := &SolveOpt{
		WghMode:   cfg.WeightMode,
		ElMask:    cfg.MinElevation,
		MinSats:   cfg.MinSatellites,
		MaxLoop:   cfg.MaxIterations,
		ConvThres: cfg.ConvThreshold,
		Ridge:     DefaultRegularization,
	}
	storeOpt := &IrStoreOpt{
		MinElevDeg:  cfg.MinElevationDeg,
		MaxElevDeg:  cfg.MaxElevationDeg,
		AzWindows:   cfg.AzWindowsDeg,
		Systems:     cfg.Systems(),
		KeepSeconds: cfg.KeepSeconds,
	}

	p := &Pipeline{
		cfg:      cfg,
		log:      log,
		engine:   NewEngine(opt),
		agg:      NewAggregator(cfg.Systems(), cfg.StaleAfter),
		store:    NewIrStore(storeOpt),
		bufs:     map[string]*RingBuffer[UpdateRecord]{},
		ingested: map[string]*atomic.Uint64{},
		updates:  make(chan UpdateRecord, 256),
		seedPos:  cfg.ApproxXYZ(),
	}
	for _, s := range cfg.Streams {
		p.bufs[s.Name] = NewRingBuffer[UpdateRecord](s.BufferCap)
		p.ingested[s.Name] = &atomic.Uint64{}
	}
	return p, nil
}

// Buffer returns the ingestion buffer for a stream, for the producer side
// (the external decoder feed). Nil for unknown streams.
func (p *Pipeline) Buffer(stream string) *RingBuffer[UpdateRecord] {
	return p.bufs[stream]
}

// Ingest pushes one decoded record into its stream's buffer.
// Never blocks; returns false for unknown or closed streams.
func (p *Pipeline) Ingest(stream string, rec UpdateRecord) bool {
	buf, ok := p.bufs[stream]
	if !ok {
		return false
	}
	rec.Stream = stream
	return buf.Push(rec)
}

// Start launches the per-stream consumers and the owner loop.
func (p *Pipeline) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	for name, buf := range p.bufs {
		p.wg.Add(1)
		go p.consume(ctx, name, buf)
	}

	p.wg.Add(1)
	go p.run(ctx)
}

// Stop cancels all goroutines and waits for them to exit.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// consume drains one stream's buffer and forwards records to the owner.
// A fault or close on this stream never blocks the other streams.
func (p *Pipeline) consume(ctx context.Context, name string, buf *RingBuffer[UpdateRecord]) {
	defer p.wg.Done()
	log := p.log.With("stream", name)
	for {
		select {
		case <-ctx.Done():
			buf.Drain() // discard outstanding entries on shutdown
			return
		case <-buf.Ready():
		}

		recs := buf.Drain()
		for _, rec := range recs {
			select {
			case p.updates <- rec:
			case <-ctx.Done():
				return
			}
		}
		if n := len(recs); n > 0 {
			p.ingested[name].Add(uint64(n))
			ingestRecordsTotal.WithLabelValues(name).Add(float64(n))
		}
		ingestDrops.WithLabelValues(name).Set(float64(buf.Drops()))

		if buf.Closed() && buf.Len() == 0 {
			log.Info("stream closed")
			return
		}
	}
}

// run is the single owner of the aggregator, engine and store.
func (p *Pipeline) run(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-p.updates:
			p.agg.Apply(rec, time.Now())
		case <-ticker.C:
			p.refresh(time.Now())
		}
	}
}

// refresh runs one cycle: prune stale satellites, publish a snapshot, solve,
// and feed the IR store.
func (p *Pipeline) refresh(now time.Time) {
	if removed := p.agg.Prune(now); len(removed) > 0 {
		p.log.Debug("pruned stale satellites", "sats", removed)
	}
	trackedSatellites.Set(float64(p.agg.Size()))

	snap := p.agg.Snapshot()
	p.snap.Store(snap)

	start := time.Now()
	sol, err := p.engine.Solve(snap, p.seedPos)
	solveDurationSeconds.Observe(time.Since(start).Seconds())

	p.statsMu.Lock()
	if err != nil {
		p.stats.SingularCount++
		p.stats.LastStatus = StatusNoFix
	} else {
		p.stats.update(sol.Status)
	}
	p.statsMu.Unlock()

	if err != nil {
		solveTotal.WithLabelValues("singular").Inc()
		p.log.Warn("solve failed", "error", err)
	} else {
		solveTotal.WithLabelValues(sol.Status.String()).Inc()
		p.sol.Store(sol)
		if sol.Status == StatusFixed {
			// Seed the next solve from this one
			p.seedPos = sol.Pos
		}
	}

	p.storeMu.Lock()
	p.store.AddEpoch(snap)
	storeSamples.Set(float64(p.store.Size()))
	p.storeMu.Unlock()
}

// Cycle drains all buffers, applies the pending records and runs one refresh
// cycle. For embeddings that prefer per-epoch cadence over the fixed tick;
// must not be mixed with Start.
func (p *Pipeline) Cycle(now time.Time) {
	for name, buf := range p.bufs {
		recs := buf.Drain()
		for _, rec := range recs {
			p.agg.Apply(rec, now)
		}
		if n := len(recs); n > 0 {
			p.ingested[name].Add(uint64(n))
			ingestRecordsTotal.WithLabelValues(name).Add(float64(n))
		}
		ingestDrops.WithLabelValues(name).Set(float64(buf.Drops()))
	}
	p.refresh(now)
}

// CurrentSnapshot returns the most recently published snapshot, or nil
// before the first refresh cycle.
func (p *Pipeline) CurrentSnapshot() *EpochSnapshot {
	return p.snap.Load()
}

// LastSolution returns the most recent solve result, or nil before the
// first successful cycle.
func (p *Pipeline) LastSolution() *Solution {
	return p.sol.Load()
}

// IrSeries returns the retained observable samples matching the filters,
// for downstream spectral analysis. Zero-valued filters match everything.
func (p *Pipeline) IrSeries(sat SatType, sys SysType, signalID SignalID) []IrSample {
	p.storeMu.Lock()
	defer p.storeMu.Unlock()
	return p.store.Series(sat, sys, signalID)
}

// Stats returns a point-in-time view of buffer health and solve outcomes.
func (p *Pipeline) Stats() PipelineStats {
	out := PipelineStats{Streams: map[string]StreamStats{}}
	for name, buf := range p.bufs {
		out.Streams[name] = StreamStats{
			Ingested: p.ingested[name].Load(),
			Drops:    buf.Drops(),
			Len:      buf.Len(),
		}
	}
	p.statsMu.Lock()
	out.Solve = p.stats
	p.statsMu.Unlock()
	return out
}
