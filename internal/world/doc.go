// Package world models the host environment: the catalog of regions a
// task may target and the per-cell generation call.
package world
