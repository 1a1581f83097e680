package environments

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/modsync/internal/execshell"
	"github.com/temirov/modsync/internal/filesystem"
	"github.com/temirov/modsync/internal/gitrepo"
	"github.com/temirov/modsync/internal/modules/autoclean"
	"github.com/temirov/modsync/internal/modules/deploy"
	"github.com/temirov/modsync/internal/modules/reconcile"
	"github.com/temirov/modsync/internal/modules/shared"
	"github.com/temirov/modsync/internal/ui"
)

const (
	cleanShortDescriptionConstant         = "Remove every module of each environment"
	cleanLongDescriptionConstant          = "clean deletes every module directory from the live and cache directories of each environment, declared or not."
	fetchShortDescriptionConstant         = "Clone or update cached modules"
	fetchLongDescriptionConstant          = "fetch clones missing modules into the cache, fast-forwards existing ones, checks out declared references and reports the resulting versions. Undeclared modules are removed when autoclean is enabled."
	listShortDescriptionConstant          = "Report cached module versions"
	listLongDescriptionConstant           = "list reports the version of every declared module found in the cache. With --verbose it also reports the version of the remote tracking branch."
	updateShortDescriptionConstant        = "Fetch modules and publish them to the live directory"
	updateLongDescriptionConstant         = "update performs fetch and then mirrors each cached module into the live module directory. Undeclared modules are removed when autoclean is enabled."
	unexpectedArgumentsTemplateConstant   = "%s does not accept positional arguments"
	commandExecutionErrorTemplateConstant = "%s failed: %w"
	configurationMissingMessageConstant   = "configuration provider not configured"
)

var errConfigurationProviderMissing = errors.New(configurationMissingMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the effective configuration after flags and files are merged.
type ConfigurationProvider func() Configuration

// CommandBuilder assembles the Cobra commands for every environment action.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	EventLoggerProvider   LoggerProvider
	ConfigurationProvider ConfigurationProvider
	// CommandRunner and FileSystem default to the operating system when nil.
	CommandRunner execshell.CommandRunner
	FileSystem    filesystem.FileSystem
}

type actionDescription struct {
	action           shared.Action
	shortDescription string
	longDescription  string
}

var actionDescriptions = []actionDescription{
	{action: shared.ActionClean, shortDescription: cleanShortDescriptionConstant, longDescription: cleanLongDescriptionConstant},
	{action: shared.ActionFetch, shortDescription: fetchShortDescriptionConstant, longDescription: fetchLongDescriptionConstant},
	{action: shared.ActionList, shortDescription: listShortDescriptionConstant, longDescription: listLongDescriptionConstant},
	{action: shared.ActionUpdate, shortDescription: updateShortDescriptionConstant, longDescription: updateLongDescriptionConstant},
}

// Build constructs the clean, fetch, list and update commands.
func (builder *CommandBuilder) Build() ([]*cobra.Command, error) {
	if builder.ConfigurationProvider == nil {
		return nil, errConfigurationProviderMissing
	}

	commands := make([]*cobra.Command, 0, len(actionDescriptions))
	for _, description := range actionDescriptions {
		commands = append(commands, &cobra.Command{
			Use:   string(description.action),
			Short: description.shortDescription,
			Long:  description.longDescription,
			RunE:  builder.run,
		})
	}
	return commands, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf(unexpectedArgumentsTemplateConstant, command.Name())
	}

	action, actionError := shared.ParseAction(command.Name())
	if actionError != nil {
		return actionError
	}

	configuration := builder.ConfigurationProvider()
	logger := builder.resolveLogger(builder.LoggerProvider)

	walker, walkerError := builder.buildWalker(command, configuration, logger)
	if walkerError != nil {
		return walkerError
	}

	_, runError := walker.Run(command.Context(), Options{
		Action:              action,
		ModuleRootDirectory: configuration.ModuleDirectory,
		DeclarationFileName: configuration.DeclarationFileName,
		EnvironmentFilter:   configuration.EnvironmentFilter,
		PrefixDirectory:     configuration.PrefixDirectory,
		CacheRootDirectory:  configuration.CacheDirectory,
		Autoclean:           configuration.Autoclean,
	})
	if runError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, action, runError)
	}
	return nil
}

func (builder *CommandBuilder) buildWalker(command *cobra.Command, configuration Configuration, logger *zap.Logger) (*Walker, error) {
	commandRunner := builder.CommandRunner
	if commandRunner == nil {
		commandRunner = execshell.NewOSCommandRunner()
	}

	executorOptions := []execshell.ShellExecutorOption{execshell.WithTestMode(configuration.TestMode)}
	if configuration.Verbose {
		executorOptions = append(executorOptions, execshell.WithCommandEventObserver(ui.NewConsoleCommandEventLogger(logger)))
	}
	executor, executorError := execshell.NewShellExecutor(logger, commandRunner, executorOptions...)
	if executorError != nil {
		return nil, executorError
	}

	fileSystem := builder.FileSystem
	if fileSystem == nil {
		fileSystem = filesystem.NewOSFileSystem()
	}
	if configuration.TestMode {
		fileSystem = filesystem.NewDryRunFileSystem(fileSystem)
	}

	reporter := shared.NewConsoleReporter(shared.ReporterOptions{
		Output:      command.OutOrStdout(),
		ErrorOutput: command.ErrOrStderr(),
		EventLogger: builder.resolveLogger(builder.EventLoggerProvider),
		Quiet:       configuration.Quiet,
	})

	versionResolver, versionResolverError := gitrepo.NewVersionResolver(executor)
	if versionResolverError != nil {
		return nil, versionResolverError
	}
	branchSynchronizer, branchSynchronizerError := gitrepo.NewBranchSynchronizer(executor)
	if branchSynchronizerError != nil {
		return nil, branchSynchronizerError
	}
	repositoryOperator, repositoryOperatorError := gitrepo.NewOperator(executor)
	if repositoryOperatorError != nil {
		return nil, repositoryOperatorError
	}
	deployer, deployerError := deploy.NewDeployer(executor, configuration.MirrorCommand)
	if deployerError != nil {
		return nil, deployerError
	}

	reconciler, reconcilerError := reconcile.NewService(reconcile.Dependencies{
		FileSystem:         fileSystem,
		VersionResolver:    versionResolver,
		BranchSynchronizer: branchSynchronizer,
		RepositoryOperator: repositoryOperator,
		Deployer:           deployer,
		Reporter:           reporter,
		Logger:             logger,
	}, reconcile.Settings{Verbose: configuration.Verbose})
	if reconcilerError != nil {
		return nil, reconcilerError
	}

	cleaner, cleanerError := autoclean.NewService(autoclean.Dependencies{
		FileSystem:      fileSystem,
		VersionResolver: versionResolver,
		Reporter:        reporter,
		Logger:          logger,
	})
	if cleanerError != nil {
		return nil, cleanerError
	}

	return NewWalker(Dependencies{
		FileSystem: fileSystem,
		Reconciler: reconciler,
		Cleaner:    cleaner,
		Reporter:   reporter,
		Logger:     logger,
	})
}

func (builder *CommandBuilder) resolveLogger(provider LoggerProvider) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
