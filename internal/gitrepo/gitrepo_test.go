package gitrepo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/modsync/internal/execshell"
	"github.com/temirov/modsync/internal/modules/testsupport"
)

const (
	testWorkingCopyConstant   = "/var/cache/modsync/production/apache"
	describeCommandConstant   = "git describe --tags --abbrev=0"
	branchListCommandConstant = "git branch --list --format=%(refname:short)"
)

func TestConstructorsRequireExecutor(t *testing.T) {
	versionResolver, versionError := NewVersionResolver(nil)
	require.ErrorIs(t, versionError, ErrGitExecutorNotConfigured)
	require.Nil(t, versionResolver)

	synchronizer, synchronizerError := NewBranchSynchronizer(nil)
	require.ErrorIs(t, synchronizerError, ErrGitExecutorNotConfigured)
	require.Nil(t, synchronizer)

	operator, operatorError := NewOperator(nil)
	require.ErrorIs(t, operatorError, ErrGitExecutorNotConfigured)
	require.Nil(t, operator)
}

func TestResolveVersion(t *testing.T) {
	testCases := []struct {
		name            string
		referenceHint   string
		responses       map[string]testsupport.CommandResponse
		expectedVersion string
		expectedCommand string
	}{
		{
			name:            "TagFound",
			responses:       map[string]testsupport.CommandResponse{describeCommandConstant: {StandardOutput: "v1.4.2\n"}},
			expectedVersion: "v1.4.2",
			expectedCommand: describeCommandConstant,
		},
		{
			name:            "RemoteTrackingHint",
			referenceHint:   RemoteTrackingReferenceConstant,
			responses:       map[string]testsupport.CommandResponse{describeCommandConstant + " @{upstream}": {StandardOutput: "v1.5.0"}},
			expectedVersion: "v1.5.0",
			expectedCommand: describeCommandConstant + " @{upstream}",
		},
		{
			name:            "NoTags",
			responses:       map[string]testsupport.CommandResponse{describeCommandConstant: {Error: errors.New("fatal: No names found")}},
			expectedVersion: MissingVersionTagConstant,
			expectedCommand: describeCommandConstant,
		},
		{
			name:            "EmptyOutput",
			responses:       map[string]testsupport.CommandResponse{describeCommandConstant: {StandardOutput: "  \n"}},
			expectedVersion: MissingVersionTagConstant,
			expectedCommand: describeCommandConstant,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			executor := &testsupport.CommandExecutorStub{Responses: testCase.responses}
			resolver, creationError := NewVersionResolver(executor)
			require.NoError(t, creationError)

			version := resolver.ResolveVersion(context.Background(), testWorkingCopyConstant, testCase.referenceHint)
			require.Equal(t, testCase.expectedVersion, version)
			require.Equal(t, []string{testCase.expectedCommand}, executor.ExecutedKeys())

			details := executor.ExecutedCommands[0].Details
			require.Equal(t, testWorkingCopyConstant, details.WorkingDirectory)
			require.False(t, details.Mutating)
			require.Equal(t, gitTerminalPromptEnvironmentDisableConstant, details.EnvironmentVariables[gitTerminalPromptEnvironmentNameConstant])
		})
	}
}

func TestSynchronizeBranchesFastForwardsEveryBranch(t *testing.T) {
	executor := &testsupport.CommandExecutorStub{Responses: map[string]testsupport.CommandResponse{
		branchListCommandConstant: {StandardOutput: "(HEAD detached at v1.0)\nmain\nrelease\n"},
	}}
	synchronizer, creationError := NewBranchSynchronizer(executor)
	require.NoError(t, creationError)

	require.NoError(t, synchronizer.SynchronizeBranches(context.Background(), testWorkingCopyConstant))
	require.Equal(t, []string{
		branchListCommandConstant,
		"git checkout main",
		"git pull --ff-only",
		"git checkout release",
		"git pull --ff-only",
	}, executor.ExecutedKeys())

	for _, command := range executor.ExecutedCommands[1:] {
		require.True(t, command.Details.Mutating)
		require.Equal(t, gitTerminalPromptEnvironmentDisableConstant, command.Details.EnvironmentVariables[gitTerminalPromptEnvironmentNameConstant])
	}
}

func TestSynchronizeBranchesCollectsFailures(t *testing.T) {
	pullFailure := errors.New("not possible to fast-forward")
	checkoutFailure := errors.New("pathspec did not match")
	pullCount := 0
	executor := &testsupport.CommandExecutorStub{
		Responses: map[string]testsupport.CommandResponse{
			branchListCommandConstant: {StandardOutput: "main\nstale\nrelease\n"},
			"git checkout stale":      {Error: checkoutFailure},
		},
		Handler: func(command execshell.ShellCommand) (execshell.ExecutionResult, bool, error) {
			if testsupport.CommandKey(command) != "git pull --ff-only" {
				return execshell.ExecutionResult{}, false, nil
			}
			pullCount++
			if pullCount == 1 {
				return execshell.ExecutionResult{}, true, pullFailure
			}
			return execshell.ExecutionResult{}, true, nil
		},
	}
	synchronizer, creationError := NewBranchSynchronizer(executor)
	require.NoError(t, creationError)

	synchronizationError := synchronizer.SynchronizeBranches(context.Background(), testWorkingCopyConstant)

	var branchSyncError *BranchSyncError
	require.ErrorAs(t, synchronizationError, &branchSyncError)
	require.Equal(t, testWorkingCopyConstant, branchSyncError.WorkingCopy)
	require.Equal(t, []BranchFailure{
		{Branch: "main", Stage: branchPullStageConstant, Cause: pullFailure},
		{Branch: "stale", Stage: branchCheckoutStageConstant, Cause: checkoutFailure},
	}, branchSyncError.Failures)
	require.ErrorIs(t, synchronizationError, pullFailure)
	require.ErrorIs(t, synchronizationError, checkoutFailure)
	require.Contains(t, synchronizationError.Error(), "main (pull)")
	require.Contains(t, executor.ExecutedKeys(), "git checkout release")
}

func TestSynchronizeBranchesReportsListingFailure(t *testing.T) {
	listingFailure := errors.New("not a git repository")
	executor := &testsupport.CommandExecutorStub{Responses: map[string]testsupport.CommandResponse{
		branchListCommandConstant: {Error: listingFailure},
	}}
	synchronizer, creationError := NewBranchSynchronizer(executor)
	require.NoError(t, creationError)

	synchronizationError := synchronizer.SynchronizeBranches(context.Background(), testWorkingCopyConstant)
	var branchSyncError *BranchSyncError
	require.ErrorAs(t, synchronizationError, &branchSyncError)
	require.ErrorIs(t, synchronizationError, listingFailure)
	require.Len(t, executor.ExecutedCommands, 1)
}

func TestOperatorCommands(t *testing.T) {
	executor := &testsupport.CommandExecutorStub{Responses: map[string]testsupport.CommandResponse{
		"git symbolic-ref --short refs/remotes/origin/HEAD": {StandardOutput: "origin/main\n"},
	}}
	operator, creationError := NewOperator(executor)
	require.NoError(t, creationError)

	require.NoError(t, operator.Clone(context.Background(), "/var/cache/modsync/production", "ssh://forge/apache.git", "apache"))
	require.NoError(t, operator.Checkout(context.Background(), testWorkingCopyConstant, "v1.0"))
	defaultBranch, lookupError := operator.DefaultBranch(context.Background(), testWorkingCopyConstant)
	require.NoError(t, lookupError)
	require.Equal(t, "main", defaultBranch)

	require.Equal(t, []string{
		"git clone ssh://forge/apache.git apache",
		"git checkout v1.0",
		"git symbolic-ref --short refs/remotes/origin/HEAD",
	}, executor.ExecutedKeys())
	require.Equal(t, "/var/cache/modsync/production", executor.ExecutedCommands[0].Details.WorkingDirectory)
	require.True(t, executor.ExecutedCommands[0].Details.Mutating)
	require.True(t, executor.ExecutedCommands[1].Details.Mutating)
	require.False(t, executor.ExecutedCommands[2].Details.Mutating)
}

func TestOperatorSurfacesFailures(t *testing.T) {
	failure := errors.New("repository not found")
	executor := &testsupport.CommandExecutorStub{Responses: map[string]testsupport.CommandResponse{
		"git clone ssh://forge/apache.git apache":           {Error: failure},
		"git checkout v9":                                   {Error: failure},
		"git symbolic-ref --short refs/remotes/origin/HEAD": {StandardOutput: ""},
	}}
	operator, creationError := NewOperator(executor)
	require.NoError(t, creationError)

	cloneError := operator.Clone(context.Background(), "/cache", "ssh://forge/apache.git", "apache")
	require.ErrorIs(t, cloneError, failure)
	require.ErrorContains(t, cloneError, "failed to clone ssh://forge/apache.git")

	checkoutError := operator.Checkout(context.Background(), testWorkingCopyConstant, "v9")
	require.ErrorIs(t, checkoutError, failure)

	_, lookupError := operator.DefaultBranch(context.Background(), testWorkingCopyConstant)
	require.ErrorIs(t, lookupError, ErrDefaultBranchUnknown)
}
