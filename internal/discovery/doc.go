// Package discovery diffs updated book snapshots against the persisted shelf
// to find newly released chapters. Books whose fetch fails stay in a pending
// set and are retried on every cycle until they succeed.
package discovery
