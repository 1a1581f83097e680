package reconcile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/temirov/modsync/internal/declarations"
	"github.com/temirov/modsync/internal/filesystem"
	"github.com/temirov/modsync/internal/gitrepo"
	"github.com/temirov/modsync/internal/modules/shared"
)

const (
	fileSystemMissingMessageConstant         = "filesystem not configured"
	versionResolverMissingMessageConstant    = "version resolver not configured"
	branchSynchronizerMissingMessageConstant = "branch synchronizer not configured"
	repositoryOperatorMissingMessageConstant = "repository operator not configured"
	deployerMissingMessageConstant           = "deployer not configured"
	reporterMissingMessageConstant           = "reporter not configured"
	unsupportedActionTemplateConstant        = "action %q cannot reconcile modules"
	directoryCreationErrorTemplateConstant   = "failed to create %s: %w"
	directoryInspectionErrorTemplateConstant = "failed to inspect %s: %w"

	notFetchedWarningTemplateConstant   = "Module %s has not been fetched"
	listReportTemplateConstant          = "%s %s"
	listRemoteReportTemplateConstant    = "%s %s (remote %s)"
	cloneWarningTemplateConstant        = "Unable to clone %s from %s: %v"
	branchSyncWarningTemplateConstant   = "Unable to synchronize branches of %s: %v"
	checkoutWarningTemplateConstant     = "Unable to check out %s of %s: %v"
	fetchedNewReportTemplateConstant    = "Fetched new module %s (%s)"
	fetchedReportTemplateConstant       = "Fetched %s (%s)"
	updatedReportTemplateConstant       = "Updated %s (%s)"
	changedEventTemplateConstant        = "Changed %s from %s to %s"
	installedEventTemplateConstant      = "Installed %s (%s)"
	defaultBranchUnavailableLogConstant = "Remote default branch unavailable; keeping current checkout"
	environmentFieldConstant            = "environment"
	moduleFieldConstant                 = "module"
	directoryPermissionsConstant        = 0o755
)

// ErrFileSystemNotConfigured indicates the filesystem dependency was missing.
var ErrFileSystemNotConfigured = errors.New(fileSystemMissingMessageConstant)

// ErrVersionResolverNotConfigured indicates the version resolver dependency was missing.
var ErrVersionResolverNotConfigured = errors.New(versionResolverMissingMessageConstant)

// ErrBranchSynchronizerNotConfigured indicates the branch synchronizer dependency was missing.
var ErrBranchSynchronizerNotConfigured = errors.New(branchSynchronizerMissingMessageConstant)

// ErrRepositoryOperatorNotConfigured indicates the repository operator dependency was missing.
var ErrRepositoryOperatorNotConfigured = errors.New(repositoryOperatorMissingMessageConstant)

// ErrDeployerNotConfigured indicates the deployer dependency was missing.
var ErrDeployerNotConfigured = errors.New(deployerMissingMessageConstant)

// ErrReporterNotConfigured indicates the reporter dependency was missing.
var ErrReporterNotConfigured = errors.New(reporterMissingMessageConstant)

// Dependencies enumerates the collaborators required by the reconciler.
type Dependencies struct {
	FileSystem         filesystem.FileSystem
	VersionResolver    shared.VersionResolver
	BranchSynchronizer shared.BranchSynchronizer
	RepositoryOperator shared.RepositoryOperator
	Deployer           shared.ModuleDeployer
	Reporter           shared.Reporter
	Logger             *zap.Logger
}

// Settings carries the run-wide options consulted during reconciliation.
type Settings struct {
	// Verbose adds the remote-tracking version to list reports.
	Verbose bool
}

// Outcome captures what happened to one module.
type Outcome struct {
	Module          string
	Version         string
	PreviousVersion string
	RemoteVersion   string
	Changed         bool
	Fetched         bool
	Installed       bool
	Skipped         bool
}

// Service reconciles declared modules.
type Service struct {
	fileSystem         filesystem.FileSystem
	versionResolver    shared.VersionResolver
	branchSynchronizer shared.BranchSynchronizer
	repositoryOperator shared.RepositoryOperator
	deployer           shared.ModuleDeployer
	reporter           shared.Reporter
	logger             *zap.Logger
	settings           Settings
}

// NewService constructs a Service from the provided dependencies and settings.
func NewService(dependencies Dependencies, settings Settings) (*Service, error) {
	switch {
	case dependencies.FileSystem == nil:
		return nil, ErrFileSystemNotConfigured
	case dependencies.VersionResolver == nil:
		return nil, ErrVersionResolverNotConfigured
	case dependencies.BranchSynchronizer == nil:
		return nil, ErrBranchSynchronizerNotConfigured
	case dependencies.RepositoryOperator == nil:
		return nil, ErrRepositoryOperatorNotConfigured
	case dependencies.Deployer == nil:
		return nil, ErrDeployerNotConfigured
	case dependencies.Reporter == nil:
		return nil, ErrReporterNotConfigured
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		fileSystem:         dependencies.FileSystem,
		versionResolver:    dependencies.VersionResolver,
		branchSynchronizer: dependencies.BranchSynchronizer,
		repositoryOperator: dependencies.RepositoryOperator,
		deployer:           dependencies.Deployer,
		reporter:           dependencies.Reporter,
		logger:             logger,
		settings:           settings,
	}, nil
}

// Reconcile applies action to one declared module of environment.
// An invalid module name or a failed deployment is returned as an error; clone, branch
// synchronization and checkout failures are reported as warnings and leave the error nil.
func (service *Service) Reconcile(executionContext context.Context, environment shared.Environment, declaration declarations.ModuleDeclaration, action shared.Action) (Outcome, error) {
	if validationError := declarations.ValidateModuleName(declaration.Name); validationError != nil {
		return Outcome{}, validationError
	}

	switch action {
	case shared.ActionList:
		return service.list(executionContext, environment, declaration)
	case shared.ActionFetch, shared.ActionUpdate:
		return service.synchronize(executionContext, environment, declaration, action)
	default:
		return Outcome{}, fmt.Errorf(unsupportedActionTemplateConstant, action)
	}
}

func (service *Service) list(executionContext context.Context, environment shared.Environment, declaration declarations.ModuleDeclaration) (Outcome, error) {
	outcome := Outcome{Module: declaration.Name}
	qualifiedName := environment.QualifiedName(declaration.Name)
	cachePath := filepath.Join(environment.CacheDirectory, declaration.Name)

	cached, inspectionError := service.directoryExists(cachePath)
	if inspectionError != nil {
		return outcome, inspectionError
	}
	if !cached {
		service.reporter.Warn(notFetchedWarningTemplateConstant, qualifiedName)
		outcome.Skipped = true
		return outcome, nil
	}

	outcome.Version = service.versionResolver.ResolveVersion(executionContext, cachePath, "")
	outcome.PreviousVersion = outcome.Version
	if !service.settings.Verbose {
		service.reporter.Report(listReportTemplateConstant, qualifiedName, outcome.Version)
		return outcome, nil
	}

	outcome.RemoteVersion = service.versionResolver.ResolveVersion(executionContext, cachePath, gitrepo.RemoteTrackingReferenceConstant)
	service.reporter.Report(listRemoteReportTemplateConstant, qualifiedName, outcome.Version, outcome.RemoteVersion)
	return outcome, nil
}

func (service *Service) synchronize(executionContext context.Context, environment shared.Environment, declaration declarations.ModuleDeclaration, action shared.Action) (Outcome, error) {
	outcome := Outcome{Module: declaration.Name}
	qualifiedName := environment.QualifiedName(declaration.Name)
	cachePath := filepath.Join(environment.CacheDirectory, declaration.Name)
	livePath := filepath.Join(environment.LiveDirectory, declaration.Name)

	for _, directory := range []string{environment.LiveDirectory, environment.CacheDirectory} {
		if creationError := service.fileSystem.MkdirAll(directory, directoryPermissionsConstant); creationError != nil {
			return outcome, fmt.Errorf(directoryCreationErrorTemplateConstant, directory, creationError)
		}
	}

	cached, inspectionError := service.directoryExists(cachePath)
	if inspectionError != nil {
		return outcome, inspectionError
	}

	if !cached {
		if cloneError := service.repositoryOperator.Clone(executionContext, environment.CacheDirectory, declaration.SourceURL, declaration.Name); cloneError != nil {
			service.reporter.Warn(cloneWarningTemplateConstant, qualifiedName, declaration.SourceURL, cloneError)
			outcome.Skipped = true
			return outcome, nil
		}
		service.checkoutDeclaredReference(executionContext, qualifiedName, cachePath, declaration.Reference)
		outcome.Version = service.versionResolver.ResolveVersion(executionContext, cachePath, "")
		outcome.PreviousVersion = outcome.Version
		outcome.Fetched = true
		service.reporter.Report(fetchedNewReportTemplateConstant, qualifiedName, outcome.Version)
	} else {
		outcome.PreviousVersion = service.versionResolver.ResolveVersion(executionContext, cachePath, "")
		if synchronizationError := service.branchSynchronizer.SynchronizeBranches(executionContext, cachePath); synchronizationError != nil {
			service.reporter.Warn(branchSyncWarningTemplateConstant, qualifiedName, synchronizationError)
		}
		if len(declaration.Reference) > 0 {
			service.checkoutDeclaredReference(executionContext, qualifiedName, cachePath, declaration.Reference)
		} else {
			service.checkoutDefaultBranch(executionContext, environment, declaration.Name, cachePath)
		}
		outcome.Version = service.versionResolver.ResolveVersion(executionContext, cachePath, "")
		outcome.Fetched = true
		outcome.Changed = outcome.Version != outcome.PreviousVersion

		switch {
		case outcome.Changed:
			service.reporter.RecordEvent(changedEventTemplateConstant, qualifiedName, outcome.PreviousVersion, outcome.Version)
		case action == shared.ActionUpdate:
			service.reporter.Report(updatedReportTemplateConstant, qualifiedName, outcome.Version)
		default:
			service.reporter.Report(fetchedReportTemplateConstant, qualifiedName, outcome.Version)
		}
	}

	if action != shared.ActionUpdate {
		return outcome, nil
	}

	cachedNow, cacheInspectionError := service.directoryExists(cachePath)
	if cacheInspectionError != nil {
		return outcome, cacheInspectionError
	}
	if !cachedNow {
		return outcome, nil
	}

	deployed, liveInspectionError := service.directoryExists(livePath)
	if liveInspectionError != nil {
		return outcome, liveInspectionError
	}
	if deployError := service.deployer.Deploy(executionContext, cachePath, livePath); deployError != nil {
		return outcome, deployError
	}
	if !deployed {
		outcome.Installed = true
		service.reporter.RecordEvent(installedEventTemplateConstant, qualifiedName, outcome.Version)
	}
	return outcome, nil
}

func (service *Service) checkoutDeclaredReference(executionContext context.Context, qualifiedName string, cachePath string, reference string) {
	if len(reference) == 0 {
		return
	}
	if checkoutError := service.repositoryOperator.Checkout(executionContext, cachePath, reference); checkoutError != nil {
		service.reporter.Warn(checkoutWarningTemplateConstant, reference, qualifiedName, checkoutError)
	}
}

func (service *Service) checkoutDefaultBranch(executionContext context.Context, environment shared.Environment, moduleName string, cachePath string) {
	defaultBranch, lookupError := service.repositoryOperator.DefaultBranch(executionContext, cachePath)
	if lookupError != nil {
		service.logger.Debug(defaultBranchUnavailableLogConstant,
			zap.String(environmentFieldConstant, environment.Name),
			zap.String(moduleFieldConstant, moduleName),
			zap.Error(lookupError),
		)
		return
	}
	service.checkoutDeclaredReference(executionContext, environment.QualifiedName(moduleName), cachePath, defaultBranch)
}

func (service *Service) directoryExists(path string) (bool, error) {
	exists, existsError := service.fileSystem.DirectoryExists(path)
	if existsError != nil {
		return false, fmt.Errorf(directoryInspectionErrorTemplateConstant, path, existsError)
	}
	return exists, nil
}
