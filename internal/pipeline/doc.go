// Package pipeline wires the polling services into the orchestrated flow:
// library watching, chapter discovery, purchasing, and publishing, with the
// progress ledger tracking every chapter from first sight to paste.
package pipeline
