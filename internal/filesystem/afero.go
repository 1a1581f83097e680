package filesystem

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// FileSystem exposes the filesystem operations required by the reconciliation services.
type FileSystem interface {
	DirectoryExists(path string) (bool, error)
	ReadFile(path string) ([]byte, error)
	ListDirectories(path string) ([]string, error)
	Walk(root string, walkFunction filepath.WalkFunc) error
	MkdirAll(path string, permissions fs.FileMode) error
	RemoveAll(path string) error
}

// OSFileSystem implements FileSystem on top of an afero.Fs.
type OSFileSystem struct {
	backend afero.Fs
}

// NewOSFileSystem returns a FileSystem backed by the operating system.
func NewOSFileSystem() *OSFileSystem {
	return NewAferoFileSystem(afero.NewOsFs())
}

// NewAferoFileSystem wraps an arbitrary afero backend.
func NewAferoFileSystem(backend afero.Fs) *OSFileSystem {
	if backend == nil {
		backend = afero.NewOsFs()
	}
	return &OSFileSystem{backend: backend}
}

// DirectoryExists reports whether path exists and is a directory.
func (fileSystem *OSFileSystem) DirectoryExists(path string) (bool, error) {
	return afero.DirExists(fileSystem.backend, path)
}

// ReadFile reads file contents.
func (fileSystem *OSFileSystem) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(fileSystem.backend, path)
}

// ListDirectories returns the sorted names of the immediate subdirectories of path.
// A missing path yields an empty list.
func (fileSystem *OSFileSystem) ListDirectories(path string) ([]string, error) {
	exists, existsError := afero.DirExists(fileSystem.backend, path)
	if existsError != nil {
		return nil, existsError
	}
	if !exists {
		return nil, nil
	}

	entries, readError := afero.ReadDir(fileSystem.backend, path)
	if readError != nil {
		return nil, readError
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Walk traverses the tree rooted at root in lexical order.
func (fileSystem *OSFileSystem) Walk(root string, walkFunction filepath.WalkFunc) error {
	return afero.Walk(fileSystem.backend, root, walkFunction)
}

// MkdirAll ensures a directory hierarchy exists with the provided permissions.
func (fileSystem *OSFileSystem) MkdirAll(path string, permissions fs.FileMode) error {
	return fileSystem.backend.MkdirAll(path, permissions)
}

// RemoveAll deletes path and everything below it.
func (fileSystem *OSFileSystem) RemoveAll(path string) error {
	return fileSystem.backend.RemoveAll(path)
}
