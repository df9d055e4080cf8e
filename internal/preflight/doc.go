// Package preflight runs environment checks before the engine starts:
// directory access, disk headroom, and collaborator API reachability.
// Failures are reported, never fatal.
package preflight
