package environments

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/temirov/modsync/internal/filesystem"
)

const (
	gitDirectoryNameConstant = ".git"
)

// DiscoverDeclarationFiles returns every file named declarationFileName below root,
// sorted by path. Git metadata directories are not searched and unreadable entries are ignored.
func DiscoverDeclarationFiles(fileSystem filesystem.FileSystem, root string, declarationFileName string) ([]string, error) {
	var declarationPaths []string
	walkError := fileSystem.Walk(root, func(path string, info fs.FileInfo, walkError error) error {
		if walkError != nil {
			if path == root {
				return walkError
			}
			return nil
		}
		if info.IsDir() {
			if info.Name() == gitDirectoryNameConstant {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Name() == declarationFileName {
			declarationPaths = append(declarationPaths, path)
		}
		return nil
	})
	if walkError != nil {
		return nil, walkError
	}

	sort.Strings(declarationPaths)
	return declarationPaths, nil
}

// EnvironmentName derives the environment identifier from the directory holding its declaration file.
func EnvironmentName(declarationPath string) string {
	return filepath.Base(filepath.Dir(declarationPath))
}

func isWithinDirectory(candidatePath string, directory string) bool {
	relativePath, relativeError := filepath.Rel(directory, candidatePath)
	if relativeError != nil {
		return false
	}
	return relativePath != "." && relativePath != ".." && !strings.HasPrefix(relativePath, ".."+string(filepath.Separator))
}
