// Package cli constructs the modsync command-line interface, wiring the Cobra
// command hierarchy, the configuration loader and the diagnostic and event
// loggers before handing each action to the environment walker.
package cli
