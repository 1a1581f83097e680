package shared

import (
	"context"
	"fmt"
	"strings"

	"github.com/temirov/modsync/internal/execshell"
)

const (
	unknownActionErrorTemplateConstant = "unknown action %q: expected one of %s"
	actionListSeparatorConstant        = ", "
	qualifiedNameSeparatorConstant     = "/"
)

// GitExecutor exposes the subset of shell execution used by git helpers.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// CommandExecutor runs arbitrary external commands.
type CommandExecutor interface {
	Execute(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error)
}

// VersionResolver reports a human-readable version for a working copy.
type VersionResolver interface {
	ResolveVersion(executionContext context.Context, workingCopy string, referenceHint string) string
}

// BranchSynchronizer fast-forwards the local branches of a working copy.
type BranchSynchronizer interface {
	SynchronizeBranches(executionContext context.Context, workingCopy string) error
}

// RepositoryOperator performs clones, checkouts and default-branch lookups.
type RepositoryOperator interface {
	Clone(executionContext context.Context, parentDirectory string, sourceURL string, directoryName string) error
	Checkout(executionContext context.Context, workingCopy string, reference string) error
	DefaultBranch(executionContext context.Context, workingCopy string) (string, error)
}

// ModuleDeployer publishes a cached working tree into its live location.
type ModuleDeployer interface {
	Deploy(executionContext context.Context, cachePath string, livePath string) error
}

// Environment identifies one independently managed set of modules and the directories it owns.
type Environment struct {
	Name            string
	DeclarationPath string
	// LiveDirectory holds the deployed module trees.
	LiveDirectory string
	// CacheDirectory holds the git working copies used as staging.
	CacheDirectory string
}

// QualifiedName renders "<environment>/<module>" as used in every report line.
func (environment Environment) QualifiedName(moduleName string) string {
	return environment.Name + qualifiedNameSeparatorConstant + moduleName
}

// Action enumerates the operations applied to every environment.
type Action string

// Supported actions.
const (
	ActionClean  Action = Action("clean")
	ActionFetch  Action = Action("fetch")
	ActionList   Action = Action("list")
	ActionUpdate Action = Action("update")
)

// Actions lists the supported actions in their canonical order.
func Actions() []Action {
	return []Action{ActionClean, ActionFetch, ActionList, ActionUpdate}
}

// ParseAction converts user input into an Action.
func ParseAction(value string) (Action, error) {
	normalized := Action(strings.ToLower(strings.TrimSpace(value)))
	for _, action := range Actions() {
		if normalized == action {
			return action, nil
		}
	}

	names := make([]string, 0, len(Actions()))
	for _, action := range Actions() {
		names = append(names, string(action))
	}
	return "", fmt.Errorf(unknownActionErrorTemplateConstant, value, strings.Join(names, actionListSeparatorConstant))
}

// Mutates reports whether the action may create or change modules.
func (action Action) Mutates() bool {
	return action == ActionFetch || action == ActionUpdate
}
