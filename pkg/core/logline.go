package core

import "time"

// LogLine is a single line captured from a source, stamped when it was observed.
type LogLine struct {
	Source     string    `json:"source"`
	Line       string    `json:"line"`
	CapturedAt time.Time `json:"captured_at"`
}

// Event is a raw line emitted by a tailer before it has been stamped.
type Event struct {
	Source string `json:"source"`
	Line   string `json:"line"`
}
