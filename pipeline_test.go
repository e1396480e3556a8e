// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.11.18
//

package gnssir_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "github.com/mkhts/gnssir"
)

// pipelineConfig builds a config seeded near the synthetic receiver truth.
func pipelineConfig() *m.Config {
	cfg := m.NewConfig()
	cfg.Streams = []m.StreamConfig{{Name: "rover", BufferCap: 64}}
	cfg.ApproxPos = []float64{truthPos.X - 130, truthPos.Y + 90, truthPos.Z - 60}
	return cfg
}

// snapshotRecords converts a snapshot into per-satellite update records.
func snapshotRecords(snap *m.EpochSnapshot) []m.UpdateRecord {
	recs := make([]m.UpdateRecord, 0, len(snap.Sats))
	for _, sat := range snap.Satellites() {
		st := snap.Sats[sat]
		recs = append(recs, m.UpdateRecord{
			Time:    snap.Time,
			Sat:     sat,
			Elev:    st.Elev,
			Azim:    st.Azim,
			Pos:     st.Pos,
			Signals: st.Signals,
		})
	}
	return recs
}

func Test_pipelineCycle(t *testing.T) {
	assert := assert.New(t)

	pipe, err := m.NewPipeline(pipelineConfig(), nil)
	require.NoError(t, err)

	for _, rec := range snapshotRecords(synthSnapshot(sixSats(), 25.0)) {
		assert.True(pipe.Ingest("rover", rec))
	}
	pipe.Cycle(time.Now())

	snap := pipe.CurrentSnapshot()
	require.NotNil(t, snap)
	assert.Len(snap.Sats, 6)

	sol := pipe.LastSolution()
	require.NotNil(t, sol)
	assert.Equal(m.StatusFixed, sol.Status)
	assert.InDelta(truthPos.X, sol.Pos.X, 1e-3)
	assert.InDelta(25.0, sol.ClockBias, 1e-6)

	// The store saw the same snapshot
	assert.Len(pipe.IrSeries("", 0, ""), 6)
	assert.Len(pipe.IrSeries("G01", 0, ""), 1)

	st := pipe.Stats()
	assert.Equal(uint64(6), st.Streams["rover"].Ingested)
	assert.Equal(uint64(0), st.Streams["rover"].Drops)
	assert.Equal(1, st.Solve.TotalEpochs)
	assert.Equal(m.StatusFixed, st.Solve.LastStatus)
	assert.Equal(100.0, st.Solve.FixRate())
}

func Test_pipelineUnknownStream(t *testing.T) {
	assert := assert.New(t)

	pipe, err := m.NewPipeline(pipelineConfig(), nil)
	require.NoError(t, err)

	assert.False(pipe.Ingest("base", m.UpdateRecord{Sat: "G01"}))
	assert.Nil(pipe.Buffer("base"))
	assert.NotNil(pipe.Buffer("rover"))
}

func Test_pipelineOverflowDrops(t *testing.T) {
	assert := assert.New(t)

	cfg := pipelineConfig()
	cfg.Streams = []m.StreamConfig{{Name: "rover", BufferCap: 2}}
	pipe, err := m.NewPipeline(cfg, nil)
	require.NoError(t, err)

	recs := snapshotRecords(synthSnapshot(sixSats(), 0))
	for _, rec := range recs {
		pipe.Ingest("rover", rec)
	}
	pipe.Cycle(time.Now())

	st := pipe.Stats()
	assert.Equal(uint64(2), st.Streams["rover"].Ingested)
	assert.Equal(uint64(4), st.Streams["rover"].Drops)

	// Only two satellites survived the lossy buffer: NoFix, not an error
	sol := pipe.LastSolution()
	require.NotNil(t, sol)
	assert.Equal(m.StatusNoFix, sol.Status)
}

func Test_pipelineNoFixWithoutData(t *testing.T) {
	assert := assert.New(t)

	pipe, err := m.NewPipeline(pipelineConfig(), nil)
	require.NoError(t, err)

	pipe.Cycle(time.Now())

	sol := pipe.LastSolution()
	require.NotNil(t, sol)
	assert.Equal(m.StatusNoFix, sol.Status)
	assert.Equal(0, sol.NumSats)
}

func Test_pipelineStaleness(t *testing.T) {
	assert := assert.New(t)

	cfg := pipelineConfig()
	cfg.StaleAfter = 5 * time.Second
	pipe, err := m.NewPipeline(cfg, nil)
	require.NoError(t, err)

	now := time.Now()
	for _, rec := range snapshotRecords(synthSnapshot(sixSats(), 10.0)) {
		pipe.Ingest("rover", rec)
	}
	pipe.Cycle(now)
	assert.Len(pipe.CurrentSnapshot().Sats, 6)

	// Nothing refreshed for longer than the staleness window: all pruned
	pipe.Cycle(now.Add(6 * time.Second))
	assert.Empty(pipe.CurrentSnapshot().Sats)
	assert.Equal(m.StatusNoFix, pipe.LastSolution().Status)
}

func Test_pipelineStartStop(t *testing.T) {
	assert := assert.New(t)

	cfg := pipelineConfig()
	cfg.TickInterval = 10 * time.Millisecond
	pipe, err := m.NewPipeline(cfg, nil)
	require.NoError(t, err)

	pipe.Start(context.Background())
	for _, rec := range snapshotRecords(synthSnapshot(sixSats(), 30.0)) {
		assert.True(pipe.Ingest("rover", rec))
	}
	time.Sleep(100 * time.Millisecond)
	pipe.Stop()

	sol := pipe.LastSolution()
	require.NotNil(t, sol)
	assert.Equal(m.StatusFixed, sol.Status)
	assert.InDelta(truthPos.X, sol.Pos.X, 1e-3)

	st := pipe.Stats()
	assert.Equal(uint64(6), st.Streams["rover"].Ingested)
	assert.GreaterOrEqual(st.Solve.TotalEpochs, 1)
}
