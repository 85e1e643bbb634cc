package ledger

import (
	"sort"
	"sync"
	"time"

	"inkwire/internal/catalog"
)

// ChapterRecord tracks one chapter's progression through the pipeline.
type ChapterRecord struct {
	Stub             catalog.ChapterStub
	DiscoveredAt     time.Time
	Bought           bool
	QueuedForPublish bool
	Published        bool
}

type entry struct {
	book      catalog.Book
	firstSeen time.Time
	chapters  map[int64]*ChapterRecord
}

// BookProgress summarizes one tracked book for the queue-status query.
type BookProgress struct {
	Book       catalog.Book
	FirstSeen  time.Time
	Discovered int
	Bought     int
	Queued     int
	Published  int
}

// Ledger is the pipeline's shared progress tracker. It is constructed and
// owned by the orchestrator; nothing here is package-level state.
type Ledger struct {
	mu      sync.Mutex
	grace   time.Duration
	entries map[int64]*entry
	clock   func() time.Time
}

// New constructs a ledger with the given cleanup grace period.
func New(grace time.Duration) *Ledger {
	return &Ledger{
		grace:   grace,
		entries: make(map[int64]*entry),
		clock:   time.Now,
	}
}

// SetClock overrides the time source; used by tests.
func (l *Ledger) SetClock(clock func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = clock
}

// Seen reports whether the ledger already tracks this exact book snapshot.
// A differing snapshot of a tracked book is not "seen": it is a new signal.
func (l *Ledger) Seen(book catalog.Book) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[book.ID]
	return ok && e.book.Equal(book)
}

// Track records a book signal, creating an entry on first sight or replacing
// the stored snapshot when it changed. The first-seen timestamp is preserved
// across snapshot replacement.
func (l *Ledger) Track(book catalog.Book) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[book.ID]; ok {
		e.book = book
		return
	}
	l.entries[book.ID] = &entry{
		book:      book,
		firstSeen: l.clock(),
		chapters:  make(map[int64]*ChapterRecord),
	}
}

// BookSnapshot returns the tracked snapshot for a book id.
func (l *Ledger) BookSnapshot(bookID int64) (catalog.Book, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[bookID]
	if !ok {
		return catalog.Book{}, false
	}
	return e.book, true
}

// RecordStubs registers newly discovered chapter stubs under their book.
// Stubs for untracked books create an entry so no signal is ever dropped.
func (l *Ledger) RecordStubs(stubs []catalog.ChapterStub) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	for _, stub := range stubs {
		e, ok := l.entries[stub.BookID]
		if !ok {
			e = &entry{
				book:      catalog.Book{ID: stub.BookID},
				firstSeen: now,
				chapters:  make(map[int64]*ChapterRecord),
			}
			l.entries[stub.BookID] = e
		}
		if _, exists := e.chapters[stub.ID]; exists {
			continue
		}
		e.chapters[stub.ID] = &ChapterRecord{Stub: stub, DiscoveredAt: now}
	}
}

// MarkBought flags a chapter as purchased.
func (l *Ledger) MarkBought(bookID, chapterID int64) {
	l.mark(bookID, chapterID, func(r *ChapterRecord) { r.Bought = true })
}

// MarkQueued flags a chapter as handed to the publish pipeline.
func (l *Ledger) MarkQueued(bookID, chapterID int64) {
	l.mark(bookID, chapterID, func(r *ChapterRecord) { r.QueuedForPublish = true })
}

// MarkPublished flags a chapter as published.
func (l *Ledger) MarkPublished(bookID, chapterID int64) {
	l.mark(bookID, chapterID, func(r *ChapterRecord) { r.Published = true })
}

func (l *Ledger) mark(bookID, chapterID int64, update func(*ChapterRecord)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[bookID]
	if !ok {
		return
	}
	if rec, ok := e.chapters[chapterID]; ok {
		update(rec)
	}
}

// Entries that never produced a chapter get a longer leash before cleanup:
// the discovery signal may still be in flight.
const chapterlessGraceFactor = 4

// Cleanup removes entries whose chapters are all published and whose
// first-seen timestamp is at least the grace period old. Entries without any
// chapter yet survive until chapterlessGraceFactor times the grace has
// passed, then they are dropped as stale signals. Returns the number of
// removed entries; calling it again is a no-op.
func (l *Ledger) Cleanup(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for id, e := range l.entries {
		if len(e.chapters) == 0 {
			if now.Sub(e.firstSeen) >= l.grace*chapterlessGraceFactor {
				delete(l.entries, id)
				removed++
			}
			continue
		}
		if now.Sub(e.firstSeen) < l.grace {
			continue
		}
		done := true
		for _, rec := range e.chapters {
			if !rec.Published {
				done = false
				break
			}
		}
		if done {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

// StageCounts reports per-book chapter-stage counts, ordered by book id.
func (l *Ledger) StageCounts() []BookProgress {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]BookProgress, 0, len(l.entries))
	for _, e := range l.entries {
		progress := BookProgress{Book: e.book, FirstSeen: e.firstSeen, Discovered: len(e.chapters)}
		for _, rec := range e.chapters {
			if rec.Bought {
				progress.Bought++
			}
			if rec.QueuedForPublish {
				progress.Queued++
			}
			if rec.Published {
				progress.Published++
			}
		}
		out = append(out, progress)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Book.ID < out[j].Book.ID })
	return out
}

// Len reports the number of tracked books.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
