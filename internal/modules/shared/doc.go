// Package shared holds the collaborator interfaces, actions and reporting
// used by the module reconciliation services.
package shared
