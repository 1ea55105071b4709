// Package task drives resumable, per-region generation tasks.
//
// A GenTask walks a selection.Selection one cell at a time, calling the
// host's Generator for each cell at a controllable pace and checkpointing
// its offset to a ProgressStore. The Registry guarantees at most one
// active task per region, and the Manager exposes the operations used by
// the command surface: start, pause, continue, cancel, skip and the
// setters for the parameters of the next start.
//
// Tasks run in their own goroutine and never block the caller. Pausing
// persists the current offset so a later continue, possibly in a new
// process, resumes at exactly the same cell.
package task
