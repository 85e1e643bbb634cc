// Package sourcesite talks to the web-novel platform: library listings, book
// metadata, chapter purchases, and library cleanup. The wire format is a
// plain JSON surface; only the fields the pipeline consumes are modeled.
package sourcesite
