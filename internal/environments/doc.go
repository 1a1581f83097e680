// Package environments discovers environment declaration files under the module
// root and drives module reconciliation and cleanup for each environment in turn.
//
// Every declaration file is parsed and every module name validated before the
// first mutation, so an invalid name aborts the run with nothing changed.
package environments
