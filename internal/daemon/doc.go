// Package daemon hosts the apply queue engine as a long-running process:
// single-instance locking, boot recovery, the HTTP API surface, and the
// optional cron-driven search schedule.
package daemon
