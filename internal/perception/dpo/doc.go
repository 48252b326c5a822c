// Package dpo holds a robot's decaying perception of the arena: which
// blocks and caches it believes exist, how fresh each belief is, and (for
// the semantic map variant) which grid cell each belief occupies.
//
// Every record owns a deep clone of the arena entity it was built from, so
// a robot never aliases arena memory. A store is written only by the robot
// that owns it; nothing here is safe for concurrent use.
//
// Missing ids are never errors. Internal disagreement between a record and
// its cell means an event was applied out of order and aborts the run via
// monitoring.Invariantf.
package dpo
