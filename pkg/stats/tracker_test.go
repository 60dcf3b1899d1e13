package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modoterra/tailsync/pkg/core"
)

func TestTrackerObserve(t *testing.T) {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	tr := NewTracker([]string{"b.log", "a.log"})

	tr.Observe(core.LogLine{Source: "a.log", Line: "hello", CapturedAt: base})
	tr.Observe(core.LogLine{Source: "a.log", Line: "world!", CapturedAt: base.Add(time.Second)})
	tr.Observe(core.LogLine{Source: "stray.log", Line: "ignored", CapturedAt: base})

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, SourceStats{Source: "b.log"}, snap[0])
	assert.Equal(t, SourceStats{
		Source:   "a.log",
		Lines:    2,
		Bytes:    11,
		FirstAt:  base,
		LastAt:   base.Add(time.Second),
		LastLine: "world!",
	}, snap[1])

	lines, bytes := Totals(snap)
	assert.Equal(t, uint64(2), lines)
	assert.Equal(t, uint64(11), bytes)
	assert.Equal(t, []string{"b.log"}, Idle(snap))
}

func TestTrackerDuplicateSources(t *testing.T) {
	tr := NewTracker([]string{"a", "a", "b"})
	assert.Len(t, tr.Snapshot(), 2)
}

func TestTrackerSnapshotIsCopy(t *testing.T) {
	tr := NewTracker([]string{"a"})
	snap := tr.Snapshot()
	snap[0].Lines = 99
	assert.Equal(t, uint64(0), tr.Snapshot()[0].Lines)
}

func TestTrackerConcurrentReads(t *testing.T) {
	tr := NewTracker([]string{"a"})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			tr.Observe(core.LogLine{Source: "a", Line: "x", CapturedAt: time.Now()})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = tr.Snapshot()
		}
	}()
	wg.Wait()
	assert.Equal(t, uint64(500), tr.Snapshot()[0].Lines)
}
