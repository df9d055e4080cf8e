// Package jobsearch provides the HTTP client for the external search-and-score
// service. The service returns postings already scored against the user's
// profile; this package only normalizes titles and guarantees every candidate
// carries a description hash for dedup.
package jobsearch
