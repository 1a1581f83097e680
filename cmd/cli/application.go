package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/modsync/internal/environments"
	"github.com/temirov/modsync/internal/utils"
	flagutils "github.com/temirov/modsync/internal/utils/flags"
	pathutils "github.com/temirov/modsync/internal/utils/path"
)

const (
	applicationNameConstant                   = "modsync"
	applicationShortDescriptionConstant       = "Reconcile declared git modules across environments"
	applicationLongDescriptionConstant        = "modsync keeps a cache of git working copies for the modules declared by each environment, pins them to their declared references and mirrors them into the live module directory."
	applicationManualTitleConstant            = "MODSYNC"
	applicationManualSectionConstant          = "1"
	applicationManualNameConstant             = "modsync manual"
	configFileFlagNameConstant                = "config"
	configFileFlagUsageConstant               = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                  = "log-level"
	logLevelFlagUsageConstant                 = "Override the configured log level."
	logFormatFlagNameConstant                 = "log-format"
	logFormatFlagUsageConstant                = "Override the configured log format (structured or console)."
	debugFlagNameConstant                     = "debug"
	debugFlagUsageConstant                    = "Log at debug level."
	environmentFlagNameConstant               = "environment"
	environmentFlagShorthandConstant          = "e"
	environmentFlagUsageConstant              = "Only process the named environment."
	testFlagNameConstant                      = "test"
	testFlagUsageConstant                     = "Report what would change without running mutating commands."
	verboseFlagNameConstant                   = "verbose"
	verboseFlagShorthandConstant              = "v"
	verboseFlagUsageConstant                  = "Report remote tracking versions and trace external commands."
	quietFlagNameConstant                     = "quiet"
	quietFlagShorthandConstant                = "q"
	quietFlagUsageConstant                    = "Only print warnings and errors."
	autocleanFlagNameConstant                 = "autoclean"
	autocleanFlagUsageConstant                = "Remove undeclared modules after fetch and update."
	manualFlagNameConstant                    = "man"
	manualFlagUsageConstant                   = "Print the full manual page and exit."
	logLevelConfigKeyConstant                 = "log_level"
	logFormatConfigKeyConstant                = "log_format"
	logFileConfigKeyConstant                  = "log_file"
	environmentPrefixConstant                 = "MODSYNC"
	configurationNameConstant                 = "config"
	configurationTypeConstant                 = "yaml"
	configurationInitializedMessageConstant   = "configuration initialized"
	configurationLogLevelFieldConstant        = "log_level"
	configurationLogFormatFieldConstant       = "log_format"
	configurationFileFieldConstant            = "config_file"
	configurationModuleDirectoryFieldConstant = "module_dir"
	configurationCacheDirectoryFieldConstant  = "tmp_dir"
	configurationTestModeFieldConstant        = "test"
	configurationLoadErrorTemplateConstant    = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant       = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant           = "unable to flush logger: %w"
	manualGenerationErrorTemplateConstant     = "unable to generate manual: %w"
	rootCommandDebugMessageConstant           = "modsync CLI diagnostics"
	logFieldCommandNameConstant               = "command_name"
	logFieldArgumentsConstant                 = "arguments"
	loggerNotInitializedMessageConstant       = "logger not initialized"
)

// Version is the release identifier reported by --version; it is set at link time.
var Version = "dev"

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	LogLevel     string                     `mapstructure:"log_level"`
	LogFormat    string                     `mapstructure:"log_format"`
	LogFile      string                     `mapstructure:"log_file"`
	Environments environments.Configuration `mapstructure:",squash"`
}

// Application wires the Cobra root command, configuration loader, and structured loggers.
type Application struct {
	rootCommand           *cobra.Command
	configurationLoader   *utils.ConfigurationLoader
	loggerFactory         *utils.LoggerFactory
	homeExpander          *pathutils.HomeExpander
	logger                *zap.Logger
	eventLogger           *zap.Logger
	configuration         ApplicationConfiguration
	configurationMetadata utils.LoadedConfiguration
	configurationFilePath string
	logLevelFlagValue     string
	logFormatFlagValue    string
	debugFlagValue        bool
	environmentFlagValue  string
	testFlagValue         bool
	verboseFlagValue      bool
	quietFlagValue        bool
	autocleanFlagValue    bool
	manualFlagValue       bool
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		utils.DefaultSearchPaths(applicationNameConstant),
	)
	configurationLoader.SetEmbeddedConfiguration(DefaultConfigurationContent(), configurationTypeConstant)

	application := &Application{
		configurationLoader: configurationLoader,
		loggerFactory:       utils.NewLoggerFactory(),
		homeExpander:        pathutils.NewHomeExpander(),
		logger:              zap.NewNop(),
		eventLogger:         zap.NewNop(),
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	persistentFlags := cobraCommand.PersistentFlags()
	persistentFlags.StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	persistentFlags.StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	persistentFlags.StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	persistentFlags.BoolVar(&application.debugFlagValue, debugFlagNameConstant, false, debugFlagUsageConstant)
	persistentFlags.StringVarP(&application.environmentFlagValue, environmentFlagNameConstant, environmentFlagShorthandConstant, "", environmentFlagUsageConstant)
	persistentFlags.BoolVar(&application.testFlagValue, testFlagNameConstant, false, testFlagUsageConstant)
	persistentFlags.BoolVarP(&application.verboseFlagValue, verboseFlagNameConstant, verboseFlagShorthandConstant, false, verboseFlagUsageConstant)
	persistentFlags.BoolVarP(&application.quietFlagValue, quietFlagNameConstant, quietFlagShorthandConstant, false, quietFlagUsageConstant)
	flagutils.AddToggleFlag(persistentFlags, &application.autocleanFlagValue, autocleanFlagNameConstant, "", true, autocleanFlagUsageConstant)
	cobraCommand.Flags().BoolVar(&application.manualFlagValue, manualFlagNameConstant, false, manualFlagUsageConstant)

	environmentsBuilder := environments.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		EventLoggerProvider: func() *zap.Logger {
			return application.eventLogger
		},
		ConfigurationProvider: func() environments.Configuration {
			return application.configuration.Environments
		},
	}
	environmentCommands, environmentBuildError := environmentsBuilder.Build()
	if environmentBuildError == nil {
		cobraCommand.AddCommand(environmentCommands...)
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the command hierarchy with the process arguments and flushes the loggers.
func (application *Application) Execute() error {
	return application.ExecuteWithArguments(os.Args[1:])
}

// ExecuteWithArguments runs the command hierarchy with explicit arguments.
func (application *Application) ExecuteWithArguments(arguments []string) error {
	application.rootCommand.SetArgs(flagutils.NormalizeToggleArguments(application.rootCommand.PersistentFlags(), arguments))
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLoggers(); syncError != nil && executionError == nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// SetOutput redirects command output and errors.
func (application *Application) SetOutput(output io.Writer, errorOutput io.Writer) {
	application.rootCommand.SetOut(output)
	application.rootCommand.SetErr(errorOutput)
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		logLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		logFormatConfigKeyConstant: "",
		logFileConfigKeyConstant:   "",
	}
	for configurationKey, configurationValue := range environments.DefaultConfigurationValues() {
		defaultValues[configurationKey] = configurationValue
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}
	application.configurationMetadata = loadedConfiguration

	application.applyFlagOverrides(command)
	application.configuration.Environments = application.configuration.Environments.Sanitize(application.homeExpander)

	logFormat := utils.LogFormat(strings.TrimSpace(application.configuration.LogFormat))
	if len(logFormat) == 0 {
		logFormat = utils.DefaultLogFormat(os.Stderr)
	}

	loggerOutputs, loggerCreationError := application.loggerFactory.CreateLoggerOutputs(
		utils.LogLevel(application.configuration.LogLevel),
		logFormat,
		application.homeExpander.Expand(application.configuration.LogFile),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = loggerOutputs.DiagnosticLogger
	application.eventLogger = loggerOutputs.EventLogger

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.LogLevel),
		zap.String(configurationLogFormatFieldConstant, string(logFormat)),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
		zap.String(configurationModuleDirectoryFieldConstant, application.configuration.Environments.ModuleDirectory),
		zap.String(configurationCacheDirectoryFieldConstant, application.configuration.Environments.CacheDirectory),
		zap.Bool(configurationTestModeFieldConstant, application.configuration.Environments.TestMode),
	)

	return nil
}

func (application *Application) applyFlagOverrides(command *cobra.Command) {
	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.LogLevel = application.logLevelFlagValue
	}
	if application.persistentFlagChanged(command, debugFlagNameConstant) && application.debugFlagValue {
		application.configuration.LogLevel = string(utils.LogLevelDebug)
	}
	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.LogFormat = application.logFormatFlagValue
	}

	environmentConfiguration := &application.configuration.Environments
	if application.persistentFlagChanged(command, environmentFlagNameConstant) {
		environmentConfiguration.EnvironmentFilter = application.environmentFlagValue
	}
	if application.persistentFlagChanged(command, testFlagNameConstant) {
		environmentConfiguration.TestMode = application.testFlagValue
	}
	if application.persistentFlagChanged(command, verboseFlagNameConstant) {
		environmentConfiguration.Verbose = application.verboseFlagValue
	}
	if application.persistentFlagChanged(command, quietFlagNameConstant) {
		environmentConfiguration.Quiet = application.quietFlagValue
	}
	if application.persistentFlagChanged(command, autocleanFlagNameConstant) {
		environmentConfiguration.Autoclean = application.autocleanFlagValue
	}
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	application.logger.Debug(
		rootCommandDebugMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Strings(logFieldArgumentsConstant, arguments),
	)

	if application.manualFlagValue {
		return application.writeManual(command.OutOrStdout())
	}

	return command.Help()
}

// writeManual renders the root command followed by every action as roff manual pages.
func (application *Application) writeManual(output io.Writer) error {
	header := &doc.GenManHeader{
		Title:   applicationManualTitleConstant,
		Section: applicationManualSectionConstant,
		Source:  applicationNameConstant + " " + Version,
		Manual:  applicationManualNameConstant,
	}

	commands := append([]*cobra.Command{application.rootCommand}, application.rootCommand.Commands()...)
	for _, command := range commands {
		if !command.IsAvailableCommand() && command != application.rootCommand {
			continue
		}
		if generationError := doc.GenMan(command, header, output); generationError != nil {
			return fmt.Errorf(manualGenerationErrorTemplateConstant, generationError)
		}
	}
	return nil
}

func (application *Application) flushLoggers() error {
	for _, logger := range []*zap.Logger{application.logger, application.eventLogger} {
		if syncError := syncLoggerInstance(logger); syncError != nil {
			return syncError
		}
	}
	return nil
}

func syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	case errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}
		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}
