// Package safego provides a panic-recovering goroutine launcher for background work.
package safego

import "log/slog"

// Go launches fn in a new goroutine, recovering and logging any panic instead
// of crashing the process. All of the gateway's fire-and-forget goroutines
// (async counter bumps, usage drainers) go through this so a panic cannot
// silently kill them forever.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "panic", r)
			}
		}()
		fn()
	}()
}
