// Package gitrepo wraps the git invocations used to keep cached module
// working copies current.
//
// VersionResolver derives a human-readable version from the nearest tag,
// BranchSynchronizer fast-forwards every local branch, and Operator performs
// clones, checkouts and default-branch lookups. Every invocation goes through
// a shared.GitExecutor so tests can substitute a recording stub.
package gitrepo
