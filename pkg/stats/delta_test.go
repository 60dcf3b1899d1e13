package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modoterra/tailsync/pkg/core"
)

func TestComputeDelta(t *testing.T) {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	tr := NewTracker([]string{"a.log", "b.log", "c.log"})
	tr.Observe(core.LogLine{Source: "a.log", Line: "x", CapturedAt: base})
	before := tr.Snapshot()

	tr.Observe(core.LogLine{Source: "b.log", Line: "y", CapturedAt: base.Add(time.Second)})
	after := tr.Snapshot()

	d := ComputeDelta(before, after)
	require.True(t, d.HasChanges())
	require.Len(t, d.Updated, 1)
	assert.Equal(t, "b.log", d.Updated[0].Source)
	assert.Equal(t, uint64(1), d.Updated[0].Lines)
}

func TestComputeDeltaNoChanges(t *testing.T) {
	tr := NewTracker([]string{"a.log"})
	snap := tr.Snapshot()
	assert.False(t, ComputeDelta(snap, tr.Snapshot()).HasChanges())
}

func TestComputeDeltaFromNothing(t *testing.T) {
	cur := []SourceStats{
		{Source: "a.log"},
		{Source: "b.log", Lines: 3, Bytes: 12},
	}
	d := ComputeDelta(nil, cur)
	require.Len(t, d.Updated, 1)
	assert.Equal(t, "b.log", d.Updated[0].Source)
}
