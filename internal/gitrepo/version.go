package gitrepo

import (
	"context"
	"errors"
	"strings"

	"github.com/temirov/modsync/internal/execshell"
	"github.com/temirov/modsync/internal/modules/shared"
)

const (
	// MissingVersionTagConstant is reported when no tag can describe a working copy.
	MissingVersionTagConstant = "missing_version_tag"
	// RemoteTrackingReferenceConstant resolves to the upstream of the checked-out branch.
	RemoteTrackingReferenceConstant = "@{upstream}"

	gitExecutorMissingMessageConstant = "git executor not configured"
	gitDescribeSubcommandConstant     = "describe"
	gitDescribeTagsFlagConstant       = "--tags"
	gitDescribeAbbrevFlagConstant     = "--abbrev=0"
)

// ErrGitExecutorNotConfigured indicates the git executor dependency was missing.
var ErrGitExecutorNotConfigured = errors.New(gitExecutorMissingMessageConstant)

// VersionResolver reports the most recent tag reachable from a reference.
type VersionResolver struct {
	executor shared.GitExecutor
}

// NewVersionResolver constructs a VersionResolver.
func NewVersionResolver(executor shared.GitExecutor) (*VersionResolver, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &VersionResolver{executor: executor}, nil
}

// ResolveVersion returns the nearest tag reachable from referenceHint, or from HEAD when
// the hint is empty. Failures and empty output degrade to MissingVersionTagConstant.
func (resolver *VersionResolver) ResolveVersion(executionContext context.Context, workingCopy string, referenceHint string) string {
	arguments := []string{gitDescribeSubcommandConstant, gitDescribeTagsFlagConstant, gitDescribeAbbrevFlagConstant}
	if trimmedHint := strings.TrimSpace(referenceHint); len(trimmedHint) > 0 {
		arguments = append(arguments, trimmedHint)
	}

	result, describeError := executeGit(executionContext, resolver.executor, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: workingCopy,
	})
	if describeError != nil {
		return MissingVersionTagConstant
	}

	version := strings.TrimSpace(result.StandardOutput)
	if len(version) == 0 {
		return MissingVersionTagConstant
	}
	return version
}
