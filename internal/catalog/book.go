package catalog

import (
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// Book is a library snapshot of one tracked title. UpdatedAt is the remote
// freshness marker, not a local write time.
type Book struct {
	ID           int64
	Title        string
	Abbrev       string
	ChapterCount int
	LibrarySlot  int
	UpdatedAt    time.Time
}

// Equal reports whether two snapshots describe the same remote state.
// LibrarySlot is a local assignment and does not participate.
func (b Book) Equal(other Book) bool {
	return b.ID == other.ID &&
		b.Title == other.Title &&
		b.ChapterCount == other.ChapterCount &&
		b.UpdatedAt.Equal(other.UpdatedAt)
}

// NewerThan reports whether b carries a richer remote state than other: a
// later update marker, or the same marker with more chapters visible.
func (b Book) NewerThan(other Book) bool {
	if b.UpdatedAt.After(other.UpdatedAt) {
		return true
	}
	return b.UpdatedAt.Equal(other.UpdatedAt) && b.ChapterCount > other.ChapterCount
}

// DisplayTitle returns the title cased for operator-facing output, falling
// back to the abbreviation when the full title is empty.
func (b Book) DisplayTitle() string {
	if b.Title == "" {
		return titleCaser.String(b.Abbrev)
	}
	return titleCaser.String(b.Title)
}
