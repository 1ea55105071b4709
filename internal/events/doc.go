// Package events provides the progress notifications published by running
// generation tasks.
//
// Tasks emit events without knowing who consumes them; the console turns
// them into progress lines and the logger records them. The primary
// components are:
// - ProgressEvent: a snapshot of one task's progress or a state change
// - EventHandler: interface for components that can handle events
// - EventEmitter: interface for components that can emit events
package events
