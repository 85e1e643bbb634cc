// Package ledger tracks per-book and per-chapter progress through the
// pipeline: discovery, purchase, publish. The orchestrator owns a single
// Ledger instance; entries are garbage-collected once every tracked chapter
// is published and a grace period has elapsed, so late duplicate signals can
// still be matched to existing state.
package ledger
