package catalog

import (
	"strings"
	"testing"
	"time"
)

func TestBookNewerThan(t *testing.T) {
	base := Book{ID: 1, ChapterCount: 10, UpdatedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}

	later := base
	later.UpdatedAt = base.UpdatedAt.Add(time.Hour)
	if !later.NewerThan(base) {
		t.Fatal("later update marker not considered newer")
	}
	if base.NewerThan(later) {
		t.Fatal("older snapshot considered newer")
	}

	grown := base
	grown.ChapterCount = 11
	if !grown.NewerThan(base) {
		t.Fatal("same marker with more chapters not considered newer")
	}
	if base.NewerThan(base) {
		t.Fatal("snapshot newer than itself")
	}
}

func TestBookEqualIgnoresSlot(t *testing.T) {
	a := Book{ID: 1, Title: "t", ChapterCount: 3, LibrarySlot: 2, UpdatedAt: time.Unix(100, 0)}
	b := a
	b.LibrarySlot = 7
	if !a.Equal(b) {
		t.Fatal("slot assignment should not affect snapshot equality")
	}
	b.ChapterCount = 4
	if a.Equal(b) {
		t.Fatal("differing chapter counts reported equal")
	}
}

func TestMultiPasteBodyOrdersByIndex(t *testing.T) {
	book := Book{ID: 9, Title: "ink"}
	chapters := []Chapter{
		{ChapterStub: ChapterStub{ID: 92, Index: 2, Name: "second"}, Content: "B"},
		{ChapterStub: ChapterStub{ID: 91, Index: 1, Name: "first"}, Content: "A"},
	}
	req := NewMultiPasteRequest(book, chapters)

	body := req.Body("src", time.Unix(0, 0))
	if strings.Index(body, "name: first") > strings.Index(body, "name: second") {
		t.Fatalf("chapters out of index order:\n%s", body)
	}
	for _, want := range []string{"book: 9", "chapter: 91", "index: 2", "source: src", "A", "B"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
}

func TestNewPasteRange(t *testing.T) {
	book := Book{ID: 5}
	chapters := []Chapter{
		{ChapterStub: ChapterStub{ID: 53, Index: 3}},
		{ChapterStub: ChapterStub{ID: 55, Index: 5}},
		{ChapterStub: ChapterStub{ID: 54, Index: 4}},
	}
	paste := NewPaste(NewMultiPasteRequest(book, chapters), "https://paste/abc")
	if paste.BookID != 5 || paste.FirstIndex != 3 || paste.LastIndex != 5 {
		t.Fatalf("unexpected paste: %+v", paste)
	}
	if len(paste.ChapterIDs) != 3 {
		t.Fatalf("unexpected chapter ids: %v", paste.ChapterIDs)
	}
}
