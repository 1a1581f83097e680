package environments

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/temirov/modsync/internal/declarations"
	"github.com/temirov/modsync/internal/filesystem"
	"github.com/temirov/modsync/internal/modules/autoclean"
	"github.com/temirov/modsync/internal/modules/deploy"
	"github.com/temirov/modsync/internal/modules/reconcile"
	"github.com/temirov/modsync/internal/modules/shared"
)

const (
	moduleRootMissingMessageConstant             = "module root directory does not exist"
	fileSystemMissingMessageConstant             = "filesystem not configured"
	reconcilerMissingMessageConstant             = "module reconciler not configured"
	cleanerMissingMessageConstant                = "module cleaner not configured"
	reporterMissingMessageConstant               = "reporter not configured"
	moduleRootMissingTemplateConstant            = "%w: %s"
	moduleRootInspectionTemplateConstant         = "failed to inspect module root %s: %w"
	discoveryErrorTemplateConstant               = "failed to discover declaration files under %s: %w"
	invalidDeclarationTemplateConstant           = "%s: %w"
	environmentFailureTemplateConstant           = "environment %s: %w"
	noDeclarationFilesWarningTemplateConstant    = "No declaration files named %s found under %s"
	skippedEnvironmentWarningTemplateConstant    = "Skipping environment %s: %v"
	processedEnvironmentsMessageTemplateConstant = "Processed %d environment(s)"
	environmentStartedLogMessageConstant         = "Processing environment"
	nestedDeclarationLogMessageConstant          = "Ignoring declaration file inside a live module directory"
	environmentFieldConstant                     = "environment"
	declarationFileFieldConstant                 = "declaration_file"
	actionFieldConstant                          = "action"
	moduleCountFieldConstant                     = "module_count"
)

// ErrModuleRootMissing indicates the configured module root does not exist.
var ErrModuleRootMissing = errors.New(moduleRootMissingMessageConstant)

// ErrFileSystemNotConfigured indicates the filesystem dependency was missing.
var ErrFileSystemNotConfigured = errors.New(fileSystemMissingMessageConstant)

// ErrReconcilerNotConfigured indicates the reconciler dependency was missing.
var ErrReconcilerNotConfigured = errors.New(reconcilerMissingMessageConstant)

// ErrCleanerNotConfigured indicates the cleaner dependency was missing.
var ErrCleanerNotConfigured = errors.New(cleanerMissingMessageConstant)

// ErrReporterNotConfigured indicates the reporter dependency was missing.
var ErrReporterNotConfigured = errors.New(reporterMissingMessageConstant)

// Environment identifies one managed set of modules.
type Environment = shared.Environment

// ModuleReconciler reconciles one declared module.
type ModuleReconciler interface {
	Reconcile(executionContext context.Context, environment shared.Environment, declaration declarations.ModuleDeclaration, action shared.Action) (reconcile.Outcome, error)
}

// ModuleCleaner removes undeclared modules.
type ModuleCleaner interface {
	Autoclean(executionContext context.Context, environment shared.Environment, declaredNames map[string]struct{}) ([]autoclean.Removal, error)
	Clean(executionContext context.Context, environment shared.Environment) ([]autoclean.Removal, error)
}

// Dependencies enumerates the collaborators required by the walker.
type Dependencies struct {
	FileSystem filesystem.FileSystem
	Reconciler ModuleReconciler
	Cleaner    ModuleCleaner
	Reporter   shared.Reporter
	Logger     *zap.Logger
}

// Options configures a walk over every environment below the module root.
type Options struct {
	Action              shared.Action
	ModuleRootDirectory string
	DeclarationFileName string
	// EnvironmentFilter restricts the walk to one environment when non-empty.
	EnvironmentFilter  string
	PrefixDirectory    string
	CacheRootDirectory string
	Autoclean          bool
}

// EnvironmentResult captures what happened in one environment.
type EnvironmentResult struct {
	Environment Environment
	Outcomes    []reconcile.Outcome
	Removals    []autoclean.Removal
}

// Result summarizes a walk.
type Result struct {
	Environments []EnvironmentResult
}

type environmentPlan struct {
	environment  Environment
	declarations []declarations.ModuleDeclaration
}

// Walker applies an action to every discovered environment in path order.
type Walker struct {
	fileSystem filesystem.FileSystem
	reconciler ModuleReconciler
	cleaner    ModuleCleaner
	reporter   shared.Reporter
	logger     *zap.Logger
}

// NewWalker constructs a Walker from the provided dependencies.
func NewWalker(dependencies Dependencies) (*Walker, error) {
	switch {
	case dependencies.FileSystem == nil:
		return nil, ErrFileSystemNotConfigured
	case dependencies.Reconciler == nil:
		return nil, ErrReconcilerNotConfigured
	case dependencies.Cleaner == nil:
		return nil, ErrCleanerNotConfigured
	case dependencies.Reporter == nil:
		return nil, ErrReporterNotConfigured
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{
		fileSystem: dependencies.FileSystem,
		reconciler: dependencies.Reconciler,
		cleaner:    dependencies.Cleaner,
		reporter:   dependencies.Reporter,
		logger:     logger,
	}, nil
}

// Run discovers declaration files, validates them all and then processes each environment.
// Fatal conditions are returned: a missing module root, an invalid module name or a failed
// deployment. Unreadable declaration files and any other environment failure skip that
// environment with a warning.
func (walker *Walker) Run(executionContext context.Context, options Options) (Result, error) {
	rootExists, rootError := walker.fileSystem.DirectoryExists(options.ModuleRootDirectory)
	if rootError != nil {
		return Result{}, fmt.Errorf(moduleRootInspectionTemplateConstant, options.ModuleRootDirectory, rootError)
	}
	if !rootExists {
		return Result{}, fmt.Errorf(moduleRootMissingTemplateConstant, ErrModuleRootMissing, options.ModuleRootDirectory)
	}

	declarationPaths, discoveryError := DiscoverDeclarationFiles(walker.fileSystem, options.ModuleRootDirectory, options.DeclarationFileName)
	if discoveryError != nil {
		return Result{}, fmt.Errorf(discoveryErrorTemplateConstant, options.ModuleRootDirectory, discoveryError)
	}
	if len(declarationPaths) == 0 {
		walker.reporter.Warn(noDeclarationFilesWarningTemplateConstant, options.DeclarationFileName, options.ModuleRootDirectory)
	}

	plans, planError := walker.plan(options, declarationPaths)
	if planError != nil {
		return Result{}, planError
	}

	result := Result{Environments: make([]EnvironmentResult, 0, len(plans))}
	for _, plan := range plans {
		environmentResult, environmentError := walker.process(executionContext, options, plan)
		result.Environments = append(result.Environments, environmentResult)
		if environmentError == nil {
			continue
		}
		if isFatalEnvironmentError(environmentError) {
			return result, fmt.Errorf(environmentFailureTemplateConstant, plan.environment.Name, environmentError)
		}
		walker.reporter.Warn(skippedEnvironmentWarningTemplateConstant, plan.environment.Name, environmentError)
	}

	walker.logger.Info(fmt.Sprintf(processedEnvironmentsMessageTemplateConstant, len(result.Environments)), zap.String(actionFieldConstant, string(options.Action)))
	return result, nil
}

func isFatalEnvironmentError(environmentError error) bool {
	var deployError *deploy.DeployError
	if errors.As(environmentError, &deployError) {
		return true
	}
	var invalidNameError *declarations.InvalidModuleNameError
	return errors.As(environmentError, &invalidNameError)
}

func (walker *Walker) plan(options Options, declarationPaths []string) ([]environmentPlan, error) {
	liveDirectories := make([]string, 0, len(declarationPaths))
	for _, declarationPath := range declarationPaths {
		liveDirectories = append(liveDirectories, walker.liveDirectory(options, EnvironmentName(declarationPath)))
	}

	plans := make([]environmentPlan, 0, len(declarationPaths))
	for declarationIndex, declarationPath := range declarationPaths {
		if nestedInLiveDirectory(declarationIndex, declarationPaths, liveDirectories) {
			walker.logger.Debug(nestedDeclarationLogMessageConstant, zap.String(declarationFileFieldConstant, declarationPath))
			continue
		}

		environmentName := EnvironmentName(declarationPath)
		if len(options.EnvironmentFilter) > 0 && environmentName != options.EnvironmentFilter {
			continue
		}

		environment := Environment{
			Name:            environmentName,
			DeclarationPath: declarationPath,
			LiveDirectory:   walker.liveDirectory(options, environmentName),
			CacheDirectory:  filepath.Join(options.CacheRootDirectory, environmentName),
		}

		if options.Action == shared.ActionClean {
			plans = append(plans, environmentPlan{environment: environment})
			continue
		}

		content, readError := walker.fileSystem.ReadFile(declarationPath)
		if readError != nil {
			walker.reporter.Warn(skippedEnvironmentWarningTemplateConstant, environmentName, readError)
			continue
		}
		moduleDeclarations, parseError := declarations.Parse(content)
		if parseError != nil {
			walker.reporter.Warn(skippedEnvironmentWarningTemplateConstant, environmentName, parseError)
			continue
		}
		if validationError := declarations.Validate(moduleDeclarations); validationError != nil {
			return nil, fmt.Errorf(invalidDeclarationTemplateConstant, declarationPath, validationError)
		}

		plans = append(plans, environmentPlan{environment: environment, declarations: moduleDeclarations})
	}
	return plans, nil
}

func (walker *Walker) process(executionContext context.Context, options Options, plan environmentPlan) (EnvironmentResult, error) {
	result := EnvironmentResult{Environment: plan.environment}
	walker.logger.Debug(environmentStartedLogMessageConstant,
		zap.String(environmentFieldConstant, plan.environment.Name),
		zap.String(declarationFileFieldConstant, plan.environment.DeclarationPath),
		zap.String(actionFieldConstant, string(options.Action)),
		zap.Int(moduleCountFieldConstant, len(plan.declarations)),
	)

	if options.Action == shared.ActionClean {
		removals, cleanError := walker.cleaner.Clean(executionContext, plan.environment)
		result.Removals = removals
		return result, cleanError
	}

	for _, declaration := range plan.declarations {
		outcome, reconcileError := walker.reconciler.Reconcile(executionContext, plan.environment, declaration, options.Action)
		if reconcileError != nil {
			return result, reconcileError
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	if options.Action.Mutates() && options.Autoclean {
		removals, autocleanError := walker.cleaner.Autoclean(executionContext, plan.environment, declarations.Names(plan.declarations))
		result.Removals = removals
		if autocleanError != nil {
			return result, autocleanError
		}
	}
	return result, nil
}

func (walker *Walker) liveDirectory(options Options, environmentName string) string {
	return filepath.Join(options.ModuleRootDirectory, environmentName, options.PrefixDirectory)
}

// nestedInLiveDirectory reports whether the declaration file at declarationIndex lies inside
// the live directory of another discovered environment, such as a deployed module shipping
// its own file with the same name.
func nestedInLiveDirectory(declarationIndex int, declarationPaths []string, liveDirectories []string) bool {
	declarationPath := declarationPaths[declarationIndex]
	for liveIndex, liveDirectory := range liveDirectories {
		if liveIndex == declarationIndex || declarationPaths[liveIndex] == declarationPath {
			continue
		}
		if isWithinDirectory(declarationPath, liveDirectory) {
			return true
		}
	}
	return false
}
