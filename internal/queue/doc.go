// Package queue defines the persisted apply queue data model and its storage.
//
// The model covers two entities: RunRecord (one search invocation) and
// JobRecord (one discovered posting moving through its application workflow).
// The status enum and the explicit legal-transition table are the single
// source of truth for lifecycle semantics; every mutation elsewhere in the
// codebase consults CanTransition/NextStatus rather than comparing strings.
//
// Storage is a single JSON document written atomically via temp file plus
// rename. The Store does not lock; the manager serializes all mutations
// through one mutex and the load-mutate-save pattern.
package queue
