// Package main hosts the applyq CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon's API: starting search runs, selecting jobs,
// kicking off generation batches, rendering the dashboard, and registering
// externally produced resume packages. Configuration scaffolding and the
// foreground daemon mode live here too.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
