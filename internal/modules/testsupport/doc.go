// Package testsupport provides recording stubs shared by module service tests.
package testsupport
