// Package resumegen produces tailored application packages for individual
// jobs. The Generator interface is what the workflow consumes; Client is the
// LLM-backed implementation that writes resume, score report, and optional
// outreach artifacts into a per-job output folder.
package resumegen
