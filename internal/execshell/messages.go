package execshell

import (
	"fmt"
	"path/filepath"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	standardErrorSuffixTemplateConstant     = ": %s"
	commandArgumentsJoinSeparatorConstant   = " "
	unknownFailureMessageConstant           = "unknown error"
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	flagPrefixConstant                      = "-"
	pathSeparatorSuffixConstant             = "/"
)

const (
	gitCloneSubcommandNameConstant       = "clone"
	gitCheckoutSubcommandNameConstant    = "checkout"
	gitBranchSubcommandNameConstant      = "branch"
	gitPullSubcommandNameConstant        = "pull"
	gitDescribeSubcommandNameConstant    = "describe"
	gitSymbolicRefSubcommandNameConstant = "symbolic-ref"
)

// messageTemplates holds the four lifecycle templates of one operation. Start and success
// templates take the subject; failure templates additionally take the exit code and the
// standard error suffix, execution failure templates the failure description.
type messageTemplates struct {
	start            string
	success          string
	failure          string
	executionFailure string
}

var (
	gitCloneTemplates = messageTemplates{
		start:            "Cloning %s",
		success:          "Cloned %s",
		failure:          "Failed to clone %s (exit code %d%s)",
		executionFailure: "Unable to clone %s: %s",
	}
	gitCheckoutTemplates = messageTemplates{
		start:            "Checking out %s",
		success:          "Checked out %s",
		failure:          "Failed to check out %s (exit code %d%s)",
		executionFailure: "Unable to check out %s: %s",
	}
	gitBranchListTemplates = messageTemplates{
		start:            "Listing local branches in %s",
		success:          "Listed local branches in %s",
		failure:          "Failed to list local branches in %s (exit code %d%s)",
		executionFailure: "Unable to list local branches in %s: %s",
	}
	gitPullTemplates = messageTemplates{
		start:            "Fast-forwarding %s",
		success:          "Fast-forwarded %s",
		failure:          "Failed to fast-forward %s (exit code %d%s)",
		executionFailure: "Unable to fast-forward %s: %s",
	}
	gitDescribeTemplates = messageTemplates{
		start:            "Describing nearest tag for %s",
		success:          "Described nearest tag for %s",
		failure:          "No tag found for %s (exit code %d%s)",
		executionFailure: "Unable to describe %s: %s",
	}
	gitSymbolicRefTemplates = messageTemplates{
		start:            "Resolving default branch of %s",
		success:          "Resolved default branch of %s",
		failure:          "Failed to resolve default branch of %s (exit code %d%s)",
		executionFailure: "Unable to resolve default branch of %s: %s",
	}
	mirrorTemplates = messageTemplates{
		start:            "Mirroring %s",
		success:          "Mirrored %s",
		failure:          "Failed to mirror %s (exit code %d%s)",
		executionFailure: "Unable to mirror %s: %s",
	}
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a command that exited with zero.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command with a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing a command that could not run.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	templates, subject, known := formatter.describe(command)
	if !known {
		templates = messageTemplates{
			start:            genericStartTemplateConstant,
			success:          genericSuccessTemplateConstant,
			failure:          genericFailureTemplateConstant,
			executionFailure: genericExecutionFailureTemplateConstant,
		}
		subject = formatter.formatCommandLabel(command)
	}

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(templates.start, subject)
	case messageStageSuccess:
		return fmt.Sprintf(templates.success, subject)
	case messageStageFailure:
		return fmt.Sprintf(templates.failure, subject, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(templates.executionFailure, subject, formatter.describeFailure(failure))
	default:
		return ""
	}
}

func (formatter CommandMessageFormatter) describe(command ShellCommand) (messageTemplates, string, bool) {
	arguments := command.Details.Arguments
	workingDirectory := formatter.describeWorkingDirectory(command)

	if command.Name != CommandGit {
		positional := formatter.positionalArguments(arguments)
		if len(positional) < 2 {
			return messageTemplates{}, "", false
		}
		source := positional[len(positional)-2]
		destination := positional[len(positional)-1]
		return mirrorTemplates, fmt.Sprintf("%s to %s", source, destination), true
	}

	if len(arguments) == 0 {
		return messageTemplates{}, "", false
	}

	positional := formatter.positionalArguments(arguments[1:])
	switch strings.TrimSpace(arguments[0]) {
	case gitCloneSubcommandNameConstant:
		source := formatter.valueAt(positional, 0)
		destination := formatter.valueAt(positional, 1)
		return gitCloneTemplates, fmt.Sprintf("%s into %s", source, filepath.Join(command.Details.WorkingDirectory, destination)), true
	case gitCheckoutSubcommandNameConstant:
		return gitCheckoutTemplates, fmt.Sprintf("%s in %s", formatter.valueAt(positional, 0), workingDirectory), true
	case gitBranchSubcommandNameConstant:
		return gitBranchListTemplates, workingDirectory, true
	case gitPullSubcommandNameConstant:
		return gitPullTemplates, workingDirectory, true
	case gitDescribeSubcommandNameConstant:
		if len(positional) > 0 {
			return gitDescribeTemplates, fmt.Sprintf("%s in %s", positional[0], workingDirectory), true
		}
		return gitDescribeTemplates, workingDirectory, true
	case gitSymbolicRefSubcommandNameConstant:
		return gitSymbolicRefTemplates, workingDirectory, true
	default:
		return messageTemplates{}, "", false
	}
}

func (formatter CommandMessageFormatter) positionalArguments(arguments []string) []string {
	positional := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		trimmed := strings.TrimSpace(argument)
		if len(trimmed) == 0 || strings.HasPrefix(trimmed, flagPrefixConstant) {
			continue
		}
		positional = append(positional, strings.TrimSuffix(trimmed, pathSeparatorSuffixConstant))
	}
	return positional
}

func (formatter CommandMessageFormatter) valueAt(values []string, index int) string {
	if index < 0 || index >= len(values) {
		return fallbackUnknownValueLabelConstant
	}
	return values[index]
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	label := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		label = label + commandArgumentsJoinSeparatorConstant + strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant)
	}
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return label
	}
	return label + fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return ""
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}
