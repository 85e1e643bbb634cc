// Package poller provides the base abstraction shared by all pipeline
// services: an unbounded input buffer, a drainable output buffer, recorded
// step errors, and a supervised fixed-interval polling loop with explicit
// start/stop transitions.
package poller
