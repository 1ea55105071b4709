// Package selection enumerates the cells of a square area around a center
// cell in a fixed spiral order.
//
// The position of every cell in the order is computed directly from its
// offset, so a Selection can be created at any offset and skipped forward
// in constant time. That is what lets a paused generation task resume from
// nothing more than a persisted offset.
package selection
