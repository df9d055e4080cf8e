// Package testsupport provides shared fixtures for package tests: temp-dir
// seeded configs, queue stores, and managers wired to stub collaborators.
package testsupport
