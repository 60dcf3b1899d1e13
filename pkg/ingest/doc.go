// Package ingest bridges a line multiplexer to the source registry.
//
// The loop selects between the next multiplexed line and cancellation. When
// both are ready Go picks one at random, so cancellation may win over a
// pending line; a line that has already been received is never lost. Capture
// time is taken from the loop's clock at the moment the line is received,
// which keeps each source's buffer ordered by capture time.
package ingest
