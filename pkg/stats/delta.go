package stats

// Delta lists the sources whose counters moved between two snapshots.
type Delta struct {
	Updated []SourceStats `json:"updated,omitempty"`
}

// HasChanges returns true if the delta contains any changes.
func (d Delta) HasChanges() bool {
	return len(d.Updated) > 0
}

// ComputeDelta compares two snapshots taken from the same tracker. A source
// missing from old is reported once it has captured something.
func ComputeDelta(old, cur []SourceStats) Delta {
	prev := make(map[string]SourceStats, len(old))
	for _, s := range old {
		prev[s.Source] = s
	}

	var d Delta
	for _, s := range cur {
		p, existed := prev[s.Source]
		if !existed {
			if s.HasData() {
				d.Updated = append(d.Updated, s)
			}
			continue
		}
		if changed(p, s) {
			d.Updated = append(d.Updated, s)
		}
	}
	return d
}

func changed(a, b SourceStats) bool {
	return a.Lines != b.Lines || a.Bytes != b.Bytes || !a.LastAt.Equal(b.LastAt)
}
