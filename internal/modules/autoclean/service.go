package autoclean

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/temirov/modsync/internal/filesystem"
	"github.com/temirov/modsync/internal/gitrepo"
	"github.com/temirov/modsync/internal/modules/shared"
)

const (
	fileSystemMissingMessageConstant      = "filesystem not configured"
	versionResolverMissingMessageConstant = "version resolver not configured"
	reporterMissingMessageConstant        = "reporter not configured"
	listDirectoryErrorTemplateConstant    = "failed to list %s: %w"
	removeDirectoryErrorTemplateConstant  = "failed to remove %s: %w"
	removedEventTemplateConstant          = "Removed %s"
	removalLogMessageConstant             = "Removed undeclared module"
	environmentFieldConstant              = "environment"
	moduleFieldConstant                   = "module"
	versionFieldConstant                  = "version"
)

// ErrFileSystemNotConfigured indicates the filesystem dependency was missing.
var ErrFileSystemNotConfigured = errors.New(fileSystemMissingMessageConstant)

// ErrVersionResolverNotConfigured indicates the version resolver dependency was missing.
var ErrVersionResolverNotConfigured = errors.New(versionResolverMissingMessageConstant)

// ErrReporterNotConfigured indicates the reporter dependency was missing.
var ErrReporterNotConfigured = errors.New(reporterMissingMessageConstant)

// Dependencies enumerates the collaborators required by the autocleaner.
type Dependencies struct {
	FileSystem      filesystem.FileSystem
	VersionResolver shared.VersionResolver
	Reporter        shared.Reporter
	Logger          *zap.Logger
}

// Removal describes a module deleted by the autocleaner.
type Removal struct {
	Module string
	// Version is the last version found in the cache; it is informational only.
	Version string
}

// Service deletes undeclared modules.
type Service struct {
	fileSystem      filesystem.FileSystem
	versionResolver shared.VersionResolver
	reporter        shared.Reporter
	logger          *zap.Logger
}

// NewService constructs a Service from the provided dependencies.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.FileSystem == nil {
		return nil, ErrFileSystemNotConfigured
	}
	if dependencies.VersionResolver == nil {
		return nil, ErrVersionResolverNotConfigured
	}
	if dependencies.Reporter == nil {
		return nil, ErrReporterNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		fileSystem:      dependencies.FileSystem,
		versionResolver: dependencies.VersionResolver,
		reporter:        dependencies.Reporter,
		logger:          logger,
	}, nil
}

// Autoclean removes every module directory in the live or cache directory of environment
// whose name is absent from declaredNames. An empty declared set empties both directories.
// Only <live>/<name> and <cache>/<name> are ever removed.
func (service *Service) Autoclean(executionContext context.Context, environment shared.Environment, declaredNames map[string]struct{}) ([]Removal, error) {
	candidates, listError := service.moduleDirectories(environment)
	if listError != nil {
		return nil, listError
	}

	var removals []Removal
	for _, moduleName := range candidates {
		if _, declared := declaredNames[moduleName]; declared {
			continue
		}

		version := service.lastKnownVersion(executionContext, environment, moduleName)

		livePath := filepath.Join(environment.LiveDirectory, moduleName)
		if removeError := service.fileSystem.RemoveAll(livePath); removeError != nil {
			return removals, fmt.Errorf(removeDirectoryErrorTemplateConstant, livePath, removeError)
		}
		cachePath := filepath.Join(environment.CacheDirectory, moduleName)
		if removeError := service.fileSystem.RemoveAll(cachePath); removeError != nil {
			return removals, fmt.Errorf(removeDirectoryErrorTemplateConstant, cachePath, removeError)
		}

		service.reporter.RecordEvent(removedEventTemplateConstant, environment.QualifiedName(moduleName))
		service.logger.Debug(removalLogMessageConstant,
			zap.String(environmentFieldConstant, environment.Name),
			zap.String(moduleFieldConstant, moduleName),
			zap.String(versionFieldConstant, version),
		)
		removals = append(removals, Removal{Module: moduleName, Version: version})
	}
	return removals, nil
}

// Clean removes every module of environment regardless of declarations.
func (service *Service) Clean(executionContext context.Context, environment shared.Environment) ([]Removal, error) {
	return service.Autoclean(executionContext, environment, nil)
}

func (service *Service) moduleDirectories(environment shared.Environment) ([]string, error) {
	unique := make(map[string]struct{})
	for _, directory := range []string{environment.LiveDirectory, environment.CacheDirectory} {
		names, listError := service.fileSystem.ListDirectories(directory)
		if listError != nil {
			return nil, fmt.Errorf(listDirectoryErrorTemplateConstant, directory, listError)
		}
		for _, name := range names {
			unique[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(unique))
	for name := range unique {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (service *Service) lastKnownVersion(executionContext context.Context, environment shared.Environment, moduleName string) string {
	cachePath := filepath.Join(environment.CacheDirectory, moduleName)
	exists, existsError := service.fileSystem.DirectoryExists(cachePath)
	if existsError != nil || !exists {
		return gitrepo.MissingVersionTagConstant
	}
	return service.versionResolver.ResolveVersion(executionContext, cachePath, "")
}
