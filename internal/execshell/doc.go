// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec behind ShellExecutor, exposes OSCommandRunner for default
// process execution, and defines the abstractions modsync uses to run git and
// the directory mirroring tool with argument vectors instead of shell strings.
// Commands flagged as mutating are skipped when the executor runs in test mode.
package execshell
