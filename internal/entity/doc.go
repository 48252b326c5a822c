// Package entity owns the arena objects robots forage for: blocks, caches,
// and the discrete coordinates they sit on.
//
// Key types: ID, Coord, Rect, Block, Cache.
//
// Dependency rule: entity depends on nothing else in this module.
package entity
