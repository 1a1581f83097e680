// Package filesystem provides the filesystem seam used by the reconciliation
// services. OSFileSystem delegates to an afero.Fs, which is the operating
// system in production and an in-memory tree in tests; DryRunFileSystem keeps
// every read and turns directory creation and removal into no-ops for test mode.
package filesystem
