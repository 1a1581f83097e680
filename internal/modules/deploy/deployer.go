package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/shell"

	"github.com/temirov/modsync/internal/execshell"
	"github.com/temirov/modsync/internal/modules/shared"
)

const (
	// DefaultMirrorCommandConstant mirrors a tree, deleting extraneous files and skipping git metadata.
	DefaultMirrorCommandConstant = string(execshell.CommandRsync) + " --archive --delete --exclude=.git"

	commandExecutorMissingMessageConstant = "command executor not configured"
	mirrorCommandEmptyMessageConstant     = "mirror command template is empty"
	mirrorCommandParseTemplateConstant    = "invalid mirror command template %q: %w"
	deployErrorTemplateConstant           = "failed to deploy %s to %s: %v"
	sourceContentsSuffixConstant          = "/"
)

// ErrCommandExecutorNotConfigured indicates the command executor dependency was missing.
var ErrCommandExecutorNotConfigured = errors.New(commandExecutorMissingMessageConstant)

// ErrMirrorCommandEmpty indicates the template produced no executable.
var ErrMirrorCommandEmpty = errors.New(mirrorCommandEmptyMessageConstant)

// DeployError reports a failed publication. It aborts the run.
type DeployError struct {
	SourcePath      string
	DestinationPath string
	Cause           error
}

// Error describes the failed publication.
func (deployError *DeployError) Error() string {
	return fmt.Sprintf(deployErrorTemplateConstant, deployError.SourcePath, deployError.DestinationPath, deployError.Cause)
}

// Unwrap exposes the underlying cause.
func (deployError *DeployError) Unwrap() error {
	return deployError.Cause
}

// Deployer mirrors a cached working tree into its live location.
type Deployer struct {
	executor         shared.CommandExecutor
	commandName      execshell.CommandName
	commandArguments []string
}

// NewDeployer parses commandTemplate with shell quoting rules. An empty template selects
// DefaultMirrorCommandConstant.
func NewDeployer(executor shared.CommandExecutor, commandTemplate string) (*Deployer, error) {
	if executor == nil {
		return nil, ErrCommandExecutorNotConfigured
	}

	template := strings.TrimSpace(commandTemplate)
	if len(template) == 0 {
		template = DefaultMirrorCommandConstant
	}

	fields, parseError := shell.Fields(template, nil)
	if parseError != nil {
		return nil, fmt.Errorf(mirrorCommandParseTemplateConstant, template, parseError)
	}
	if len(fields) == 0 || len(strings.TrimSpace(fields[0])) == 0 {
		return nil, ErrMirrorCommandEmpty
	}

	return &Deployer{
		executor:         executor,
		commandName:      execshell.CommandName(fields[0]),
		commandArguments: fields[1:],
	}, nil
}

// Deploy makes livePath an exact mirror of the contents of cachePath.
func (deployer *Deployer) Deploy(executionContext context.Context, cachePath string, livePath string) error {
	arguments := append(append([]string{}, deployer.commandArguments...),
		strings.TrimSuffix(cachePath, sourceContentsSuffixConstant)+sourceContentsSuffixConstant,
		livePath,
	)

	_, executionError := deployer.executor.Execute(executionContext, execshell.ShellCommand{
		Name: deployer.commandName,
		Details: execshell.CommandDetails{
			Arguments: arguments,
			Mutating:  true,
		},
	})
	if executionError != nil {
		return &DeployError{SourcePath: cachePath, DestinationPath: livePath, Cause: executionError}
	}
	return nil
}
