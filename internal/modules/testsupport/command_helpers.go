package testsupport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/temirov/modsync/internal/execshell"
)

const (
	commandKeySeparatorConstant = " "
)

// CommandResponse is the canned outcome of a stubbed command.
type CommandResponse struct {
	StandardOutput string
	Error          error
}

// CommandKey renders a command as "<name> <arguments...>" for response lookup.
func CommandKey(command execshell.ShellCommand) string {
	parts := append([]string{string(command.Name)}, command.Details.Arguments...)
	return strings.Join(parts, commandKeySeparatorConstant)
}

// CommandExecutorStub records every invocation and replies from Handler, then Responses.
// Unmatched commands succeed with empty output.
type CommandExecutorStub struct {
	Handler          func(command execshell.ShellCommand) (execshell.ExecutionResult, bool, error)
	Responses        map[string]CommandResponse
	ExecutedCommands []execshell.ShellCommand
}

// Execute records the command and returns the configured response.
func (executor *CommandExecutorStub) Execute(_ context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	executor.ExecutedCommands = append(executor.ExecutedCommands, command)
	if executor.Handler != nil {
		if result, handled, handlerError := executor.Handler(command); handled {
			return result, handlerError
		}
	}
	if response, exists := executor.Responses[CommandKey(command)]; exists {
		if response.Error != nil {
			return execshell.ExecutionResult{}, response.Error
		}
		return execshell.ExecutionResult{StandardOutput: response.StandardOutput}, nil
	}
	return execshell.ExecutionResult{}, nil
}

// ExecuteGit delegates to Execute with the git command name.
func (executor *CommandExecutorStub) ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	return executor.Execute(executionContext, execshell.ShellCommand{Name: execshell.CommandGit, Details: details})
}

// ExecutedKeys lists the recorded commands rendered with CommandKey.
func (executor *CommandExecutorStub) ExecutedKeys() []string {
	keys := make([]string, 0, len(executor.ExecutedCommands))
	for _, command := range executor.ExecutedCommands {
		keys = append(keys, CommandKey(command))
	}
	return keys
}

// RecordingReporter captures reported lines by channel.
type RecordingReporter struct {
	mutex    sync.Mutex
	Reports  []string
	Warnings []string
	Events   []string
}

// Report records an informational line.
func (reporter *RecordingReporter) Report(format string, args ...any) {
	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()
	reporter.Reports = append(reporter.Reports, fmt.Sprintf(format, args...))
}

// Warn records a warning line.
func (reporter *RecordingReporter) Warn(format string, args ...any) {
	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()
	reporter.Warnings = append(reporter.Warnings, fmt.Sprintf(format, args...))
}

// RecordEvent records an event line.
func (reporter *RecordingReporter) RecordEvent(format string, args ...any) {
	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()
	reporter.Events = append(reporter.Events, fmt.Sprintf(format, args...))
}
