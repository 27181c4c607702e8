// Package rules implements the deterministic coding core: measurement
// arithmetic, count tiering, repair aggregation, bundling resolution, E/M
// and modifier decisions, and wRVU totals. Everything here is a pure
// function over the reference Store; no I/O, no randomness.
package rules

import "errors"

// Error taxonomy. The first three are entity-local and degrade to
// documentation gaps; ErrNoBandFound indicates a reference-table gap and
// is logged as a configuration defect by callers.
var (
	ErrInvalidMeasurement   = errors.New("invalid measurement")
	ErrInvalidCount         = errors.New("invalid count")
	ErrUnknownAnatomicGroup = errors.New("unknown anatomic group")
	ErrNoBandFound          = errors.New("no band found")
)
