// Package daemon enforces single-instance execution and owns the pipeline
// lifecycle behind the IPC control surface.
package daemon
