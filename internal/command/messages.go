package command

import (
	"fmt"
	"time"
)

// Prefix starts every console line.
const Prefix = "[chunkgen]"

// Console message formats
const (
	FormatStart          = "Task started for %s at %d, %d with radius %d."
	FormatStartedAlready = "Task already started for %s!"
	FormatPause          = "Task paused for %s."
	FormatContinue       = "Task continuing for %s."
	FormatCancel         = "Task cancelled for %s."
	FormatNothing        = "Nothing to continue for %s."
	FormatNotRunning     = "No task running for %s."
	FormatWorld          = "World changed to %s."
	FormatWorldUnknown   = "No world named %s."
	FormatCenter         = "Center changed to %d, %d."
	FormatRadius         = "Radius changed to %d."
	FormatSilent         = "Silent mode %s."
	FormatQuiet          = "Quiet interval set to %d seconds."
	FormatSkip           = "Skipping %d cells on the next start."
	FormatPersistence    = "Could not save progress for %s: %s"
	FormatProgress       = "Task running for %s. Processed: %d cells (%.2f%%), ETA: %s, Rate: %.1f cps, Current: %s"
	FormatComplete       = "Task finished for %s. Processed: %d cells (%.2f%%), Failed: %d, Total time: %s"
	FormatActive         = "%s: %s, %d/%d cells (%.2f%%), center %s, radius %d, failures %d"
	FormatSaved          = "%s: saved %s at %d/%d cells, center %d, %d, radius %d"
)

// Messages without arguments
const (
	MessageNoTasks        = "No tasks running."
	MessageNothingToSave  = "No saved progress."
	MessageNothingAtAll   = "Nothing to continue."
	MessageNothingToPause = "No tasks to pause."
	MessageNoWorlds       = "No matching worlds."
)

// formatClock renders d as h:mm:ss.
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
