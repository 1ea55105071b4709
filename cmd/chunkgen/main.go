// Package main implements the chunkgen command, which drives resumable
// background generation of the cells around a center point, one task per
// world.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
