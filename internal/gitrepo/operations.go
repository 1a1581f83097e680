package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/modsync/internal/execshell"
	"github.com/temirov/modsync/internal/modules/shared"
)

const (
	gitCloneSubcommandConstant             = "clone"
	gitSymbolicReferenceSubcommandConstant = "symbolic-ref"
	gitShortFlagConstant                   = "--short"
	originHeadReferenceConstant            = "refs/remotes/origin/HEAD"
	originRemotePrefixConstant             = "origin/"
	cloneFailureTemplateConstant           = "failed to clone %s: %w"
	checkoutFailureTemplateConstant        = "failed to checkout %q: %w"
	defaultBranchFailureTemplateConstant   = "failed to determine default branch: %w"
	defaultBranchMissingMessageConstant    = "remote default branch is not recorded"
)

// ErrDefaultBranchUnknown indicates origin/HEAD is not set in the working copy.
var ErrDefaultBranchUnknown = errors.New(defaultBranchMissingMessageConstant)

// Operator performs the mutating repository operations of the reconciler.
type Operator struct {
	executor shared.GitExecutor
}

// NewOperator constructs an Operator.
func NewOperator(executor shared.GitExecutor) (*Operator, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &Operator{executor: executor}, nil
}

// Clone clones sourceURL into parentDirectory/directoryName.
func (operator *Operator) Clone(executionContext context.Context, parentDirectory string, sourceURL string, directoryName string) error {
	_, cloneError := executeGit(executionContext, operator.executor, execshell.CommandDetails{
		Arguments:        []string{gitCloneSubcommandConstant, sourceURL, directoryName},
		WorkingDirectory: parentDirectory,
		Mutating:         true,
	})
	if cloneError != nil {
		return fmt.Errorf(cloneFailureTemplateConstant, sourceURL, cloneError)
	}
	return nil
}

// Checkout checks out reference, which may be a tag, branch or commit.
func (operator *Operator) Checkout(executionContext context.Context, workingCopy string, reference string) error {
	_, checkoutError := executeGit(executionContext, operator.executor, execshell.CommandDetails{
		Arguments:        []string{gitCheckoutSubcommandConstant, reference},
		WorkingDirectory: workingCopy,
		Mutating:         true,
	})
	if checkoutError != nil {
		return fmt.Errorf(checkoutFailureTemplateConstant, reference, checkoutError)
	}
	return nil
}

// DefaultBranch returns the branch origin/HEAD points at, without the remote prefix.
func (operator *Operator) DefaultBranch(executionContext context.Context, workingCopy string) (string, error) {
	result, lookupError := executeGit(executionContext, operator.executor, execshell.CommandDetails{
		Arguments:        []string{gitSymbolicReferenceSubcommandConstant, gitShortFlagConstant, originHeadReferenceConstant},
		WorkingDirectory: workingCopy,
	})
	if lookupError != nil {
		return "", fmt.Errorf(defaultBranchFailureTemplateConstant, lookupError)
	}

	branch := strings.TrimPrefix(strings.TrimSpace(result.StandardOutput), originRemotePrefixConstant)
	if len(branch) == 0 {
		return "", ErrDefaultBranchUnknown
	}
	return branch, nil
}
