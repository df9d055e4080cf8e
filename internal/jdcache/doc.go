// Package jdcache persists job-description analyses keyed by content hash so
// repeated search runs skip re-scoring postings the user has already seen.
package jdcache
