// Package grid owns the discretised arena: a dense 2D array of cells, each
// driven by a small occupancy state machine (empty, holding a block, or
// holding a cache).
//
// The same types back the arena's ground truth and every robot's semantic
// map; only the owner differs.
//
// Dependency rule: grid may depend on entity, never on perception or arena.
package grid
