// Package shelf persists the mirrored catalog (books, chapters) and the
// credential inventory (accounts, proxies) in SQLite. It backs both the
// persisted-state boundary the discovery stage diffs against and the
// credential store the watcher and buyer draw from.
package shelf
