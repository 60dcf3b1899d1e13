package core

import "context"

// Tailer is the interface for anything that can follow a set of files and
// multiplex their new lines into a single stream.
type Tailer interface {
	// Add registers a file to follow. Registering the same path twice is a
	// no-op, and the file does not have to exist yet.
	Add(path string) error

	// Lines returns the multiplexed stream of new lines in arrival order.
	Lines() <-chan Event

	// Run follows the registered files until ctx is cancelled. The Lines
	// channel is closed when Run returns.
	Run(ctx context.Context) error
}
