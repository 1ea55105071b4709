// Package filestore implements task.ProgressStore on top of a single
// YAML file. It is the default backend: records survive restarts without
// any external service.
package filestore
