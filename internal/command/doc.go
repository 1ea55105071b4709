// Package command is the console surface of chunkgen. It parses command
// lines into typed parameters, forwards them to the task manager and
// reports every outcome as a single line of text. It also prints the
// progress events emitted by running tasks unless silent mode is on.
package command
