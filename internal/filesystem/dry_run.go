package filesystem

import "io/fs"

// DryRunFileSystem forwards reads to the wrapped FileSystem and skips mutations.
type DryRunFileSystem struct {
	FileSystem
}

// NewDryRunFileSystem wraps base so that MkdirAll and RemoveAll succeed without touching disk.
func NewDryRunFileSystem(base FileSystem) *DryRunFileSystem {
	return &DryRunFileSystem{FileSystem: base}
}

// MkdirAll reports success without creating anything.
func (DryRunFileSystem) MkdirAll(string, fs.FileMode) error {
	return nil
}

// RemoveAll reports success without removing anything.
func (DryRunFileSystem) RemoveAll(string) error {
	return nil
}
