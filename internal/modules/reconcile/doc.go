// Package reconcile brings one declared module of an environment in line with its
// declaration: it clones or updates the cached working copy, pins the declared
// reference, resolves the resulting version and, for updates, publishes the working
// tree into the live directory.
//
// The reconciler only ever creates the environment's live and cache directories and
// writes below <cache>/<module> and <live>/<module>.
package reconcile
