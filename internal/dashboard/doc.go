// Package dashboard projects the apply queue document into display-ready job
// lists. Projection is a pure read; all mutation goes through the manager.
package dashboard
