// Package autoclean removes modules that are no longer declared for an environment
// from both its live and cache directories.
package autoclean
