// Package manager is the apply queue's concurrency controller. It owns the
// persisted document, serializes every load-mutate-save through one mutex,
// gates expensive collaborator work behind a single active-operation slot,
// and repairs interrupted state at boot.
package manager
