// Package catalog holds the domain model shared across the pipeline: book and
// chapter snapshots, purchasing accounts and proxies, and paste requests with
// their rendered bodies.
package catalog
