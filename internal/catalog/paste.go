package catalog

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Paste records a completed upload: where it lives and which chapters of
// which book it covers.
type Paste struct {
	URL        string
	BookID     int64
	ChapterIDs []int64
	FirstIndex int
	LastIndex  int
}

// PasteJob is one upload unit produced by run partitioning: a single chapter
// or a maximal consecutive run of chapters from the same book.
type PasteJob interface {
	Book() Book
	Chapters() []Chapter
	Title() string
	// Body renders the upload text: a metadata header per chapter followed
	// by its content, blocks joined in index order.
	Body(sourceTag string, now time.Time) string
}

// PasteRequest uploads exactly one chapter.
type PasteRequest struct {
	book    Book
	chapter Chapter
}

// MultiPasteRequest uploads a consecutive run of chapters as one paste.
type MultiPasteRequest struct {
	book     Book
	chapters []Chapter
}

// NewPasteRequest builds the single-chapter job.
func NewPasteRequest(book Book, chapter Chapter) PasteRequest {
	return PasteRequest{book: book, chapter: chapter}
}

// NewMultiPasteRequest builds a run job. Chapters are kept in index order.
func NewMultiPasteRequest(book Book, chapters []Chapter) MultiPasteRequest {
	return MultiPasteRequest{book: book, chapters: sortedByIndex(chapters)}
}

func (r PasteRequest) Book() Book          { return r.book }
func (r PasteRequest) Chapters() []Chapter { return []Chapter{r.chapter} }

func (r PasteRequest) Title() string {
	return fmt.Sprintf("%s #%d %s", r.book.DisplayTitle(), r.chapter.Index, r.chapter.Name)
}

func (r PasteRequest) Body(sourceTag string, now time.Time) string {
	return renderChapter(r.book, r.chapter, sourceTag, now)
}

func (r MultiPasteRequest) Book() Book          { return r.book }
func (r MultiPasteRequest) Chapters() []Chapter { return r.chapters }

func (r MultiPasteRequest) Title() string {
	first, last := IndexRange(r.chapters)
	return fmt.Sprintf("%s #%d-%d", r.book.DisplayTitle(), first, last)
}

func (r MultiPasteRequest) Body(sourceTag string, now time.Time) string {
	blocks := make([]string, 0, len(r.chapters))
	for _, ch := range r.chapters {
		blocks = append(blocks, renderChapter(r.book, ch, sourceTag, now))
	}
	return strings.Join(blocks, "\n")
}

// NewPaste records the outcome of a successful upload.
func NewPaste(job PasteJob, url string) Paste {
	chapters := job.Chapters()
	ids := make([]int64, 0, len(chapters))
	for _, ch := range chapters {
		ids = append(ids, ch.ID)
	}
	first, last := IndexRange(chapters)
	return Paste{
		URL:        url,
		BookID:     job.Book().ID,
		ChapterIDs: ids,
		FirstIndex: first,
		LastIndex:  last,
	}
}

// IndexRange returns the lowest and highest chapter index in the slice.
func IndexRange(chapters []Chapter) (int, int) {
	if len(chapters) == 0 {
		return 0, 0
	}
	first, last := chapters[0].Index, chapters[0].Index
	for _, ch := range chapters[1:] {
		if ch.Index < first {
			first = ch.Index
		}
		if ch.Index > last {
			last = ch.Index
		}
	}
	return first, last
}

func sortedByIndex(chapters []Chapter) []Chapter {
	out := make([]Chapter, len(chapters))
	copy(out, chapters)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// renderChapter emits the fixed metadata header followed by the chapter text.
func renderChapter(book Book, ch Chapter, sourceTag string, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "book: %d\n", book.ID)
	fmt.Fprintf(&b, "chapter: %d\n", ch.ID)
	fmt.Fprintf(&b, "time: %s\n", now.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "price: %d\n", ch.Price)
	fmt.Fprintf(&b, "index: %d\n", ch.Index)
	fmt.Fprintf(&b, "vip: %t\n", ch.VIP)
	fmt.Fprintf(&b, "source: %s\n", sourceTag)
	fmt.Fprintf(&b, "name: %s\n", ch.Name)
	b.WriteString(ch.Content)
	b.WriteString("\n")
	return b.String()
}
