// Package store defines the storage errors and database abstractions shared
// by every progress store backend. Backends live under internal/platform and
// map their native errors onto the sentinels defined here.
package store
