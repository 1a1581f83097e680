package gitrepo

import (
	"context"

	"github.com/temirov/modsync/internal/execshell"
	"github.com/temirov/modsync/internal/modules/shared"
)

const (
	gitTerminalPromptEnvironmentNameConstant    = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptEnvironmentDisableConstant = "0"
)

func executeGit(executionContext context.Context, executor shared.GitExecutor, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	environment := make(map[string]string, len(details.EnvironmentVariables)+1)
	for name, value := range details.EnvironmentVariables {
		environment[name] = value
	}
	environment[gitTerminalPromptEnvironmentNameConstant] = gitTerminalPromptEnvironmentDisableConstant
	details.EnvironmentVariables = environment
	return executor.ExecuteGit(executionContext, details)
}
