package gitrepo

import (
	"context"
	"fmt"
	"strings"

	"github.com/temirov/modsync/internal/execshell"
	"github.com/temirov/modsync/internal/modules/shared"
)

const (
	gitBranchSubcommandConstant           = "branch"
	gitBranchListFlagConstant             = "--list"
	gitBranchShortNameFormatConstant      = "--format=%(refname:short)"
	gitCheckoutSubcommandConstant         = "checkout"
	gitPullSubcommandConstant             = "pull"
	gitPullFastForwardFlagConstant        = "--ff-only"
	detachedHeadPrefixConstant            = "("
	branchSyncErrorPrefixTemplateConstant = "branch synchronization failed in %s"
	branchListingFailureTemplateConstant  = ": unable to list branches: %v"
	branchFailureTemplateConstant         = " %s (%s): %v"
	branchFailuresPrefixConstant          = ":"
	branchFailureSeparatorConstant        = ";"
	branchCheckoutStageConstant           = "checkout"
	branchPullStageConstant               = "pull"
)

// BranchFailure records a branch that could not be synchronized.
type BranchFailure struct {
	Branch string
	Stage  string
	Cause  error
}

// BranchSyncError aggregates the branches that failed to synchronize in one working copy.
// It is recoverable: callers report it and continue.
type BranchSyncError struct {
	WorkingCopy  string
	ListingError error
	Failures     []BranchFailure
}

// Error lists every failed branch.
func (syncError *BranchSyncError) Error() string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf(branchSyncErrorPrefixTemplateConstant, syncError.WorkingCopy))
	if syncError.ListingError != nil {
		builder.WriteString(fmt.Sprintf(branchListingFailureTemplateConstant, syncError.ListingError))
	}
	if len(syncError.Failures) > 0 {
		builder.WriteString(branchFailuresPrefixConstant)
	}
	for index, failure := range syncError.Failures {
		if index > 0 {
			builder.WriteString(branchFailureSeparatorConstant)
		}
		builder.WriteString(fmt.Sprintf(branchFailureTemplateConstant, failure.Branch, failure.Stage, failure.Cause))
	}
	return builder.String()
}

// Unwrap exposes the underlying causes.
func (syncError *BranchSyncError) Unwrap() []error {
	causes := make([]error, 0, len(syncError.Failures)+1)
	if syncError.ListingError != nil {
		causes = append(causes, syncError.ListingError)
	}
	for _, failure := range syncError.Failures {
		causes = append(causes, failure.Cause)
	}
	return causes
}

// BranchSynchronizer fast-forwards every local branch of a working copy from its upstream.
type BranchSynchronizer struct {
	executor shared.GitExecutor
}

// NewBranchSynchronizer constructs a BranchSynchronizer.
func NewBranchSynchronizer(executor shared.GitExecutor) (*BranchSynchronizer, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &BranchSynchronizer{executor: executor}, nil
}

// SynchronizeBranches checks out and fast-forwards each local branch in listing order.
// The last branch processed stays checked out. Failures do not stop the iteration and are
// returned together as a *BranchSyncError.
func (synchronizer *BranchSynchronizer) SynchronizeBranches(executionContext context.Context, workingCopy string) error {
	branches, listingError := synchronizer.listBranches(executionContext, workingCopy)
	if listingError != nil {
		return &BranchSyncError{WorkingCopy: workingCopy, ListingError: listingError}
	}

	var failures []BranchFailure
	for _, branch := range branches {
		if checkoutError := synchronizer.run(executionContext, workingCopy, gitCheckoutSubcommandConstant, branch); checkoutError != nil {
			failures = append(failures, BranchFailure{Branch: branch, Stage: branchCheckoutStageConstant, Cause: checkoutError})
			continue
		}
		if pullError := synchronizer.run(executionContext, workingCopy, gitPullSubcommandConstant, gitPullFastForwardFlagConstant); pullError != nil {
			failures = append(failures, BranchFailure{Branch: branch, Stage: branchPullStageConstant, Cause: pullError})
		}
	}

	if len(failures) > 0 {
		return &BranchSyncError{WorkingCopy: workingCopy, Failures: failures}
	}
	return nil
}

func (synchronizer *BranchSynchronizer) listBranches(executionContext context.Context, workingCopy string) ([]string, error) {
	result, listError := executeGit(executionContext, synchronizer.executor, execshell.CommandDetails{
		Arguments:        []string{gitBranchSubcommandConstant, gitBranchListFlagConstant, gitBranchShortNameFormatConstant},
		WorkingDirectory: workingCopy,
	})
	if listError != nil {
		return nil, listError
	}

	var branches []string
	for _, line := range strings.Split(result.StandardOutput, "\n") {
		branch := strings.TrimSpace(line)
		if len(branch) == 0 || strings.HasPrefix(branch, detachedHeadPrefixConstant) {
			continue
		}
		branches = append(branches, branch)
	}
	return branches, nil
}

func (synchronizer *BranchSynchronizer) run(executionContext context.Context, workingCopy string, arguments ...string) error {
	_, executionError := executeGit(executionContext, synchronizer.executor, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: workingCopy,
		Mutating:         true,
	})
	return executionError
}
