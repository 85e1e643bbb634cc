// Package watcher polls the library partitions for updated book snapshots.
// Each configured slot carries one library account; the watcher keeps the
// account and proxy valid, compares remote listings against the persisted
// shelf, emits updated snapshots, and removes stray remote entries.
package watcher
