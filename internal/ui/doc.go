// Package ui renders command lifecycle events as concise console lines so that
// verbose runs show every git and mirroring invocation while structured
// telemetry keeps flowing through the diagnostic logger.
package ui
