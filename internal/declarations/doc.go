// Package declarations parses environment declaration files.
//
// A declaration file is a YAML mapping with a FORGE base URL and a MODULES
// list whose entries name a module (mod), optionally its git source (git) and
// optionally a pinned reference (ref). Modules without a git source default to
// FORGE/<mod>.git. Module names are restricted to word characters because they
// become directory names under the cache and live trees.
package declarations
