// Package deploy publishes cached module working trees into the live module directory
// through a configurable directory-mirroring command.
package deploy
