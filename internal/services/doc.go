// Package services holds the error taxonomy shared by pipeline components.
// Errors are tagged with sentinel markers so callers can classify failures
// (transient, exhausted, benign) without string matching.
package services
