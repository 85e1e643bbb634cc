package publisher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"inkwire/internal/catalog"
	"inkwire/internal/config"
	"inkwire/internal/logging"
)

type fakePaster struct {
	mu       sync.Mutex
	failures int
	calls    []string
}

func (f *fakePaster) Publish(_ context.Context, title, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, title)
	if f.failures > 0 {
		f.failures--
		return "", errors.New("paste service down")
	}
	return "https://paste/" + title, nil
}

type fakeResolver struct{}

func (fakeResolver) CompleteBook(_ context.Context, bookID int64) (catalog.Book, []catalog.ChapterStub, error) {
	return catalog.Book{ID: bookID, Title: "seas of ink"}, nil, nil
}

func chapter(bookID int64, index int) catalog.Chapter {
	return catalog.Chapter{
		ChapterStub: catalog.ChapterStub{ID: bookID*100 + int64(index), BookID: bookID, Index: index, Name: "ch"},
		Content:     "body",
	}
}

func newPublisher(paster *fakePaster) *Publisher {
	cfg := config.Default()
	return New(&cfg, paster, fakeResolver{}, logging.NewNop())
}

func TestGroupRuns(t *testing.T) {
	var chapters []catalog.Chapter
	for _, idx := range []int{10, 5, 15, 6, 11, 7} {
		chapters = append(chapters, chapter(1, idx))
	}
	runs := GroupRuns(chapters)
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	want := [][]int{{5, 6, 7}, {10, 11}, {15}}
	for i, run := range runs {
		if len(run) != len(want[i]) {
			t.Fatalf("run %d: expected %v, got %+v", i, want[i], run)
		}
		for j, ch := range run {
			if ch.Index != want[i][j] {
				t.Fatalf("run %d: expected %v, got %+v", i, want[i], run)
			}
		}
	}

	if GroupRuns(nil) != nil {
		t.Fatal("empty input should yield no runs")
	}
}

func TestStepPublishesRunsPerBook(t *testing.T) {
	paster := &fakePaster{}
	p := newPublisher(paster)

	// Book 1: one consecutive pair plus an isolated chapter; book 2: single.
	p.Enqueue(chapter(1, 4), chapter(1, 5), chapter(1, 9), chapter(2, 1))
	if err := p.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	pastes, err := p.Drain()
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(pastes) != 3 {
		t.Fatalf("expected 3 pastes, got %+v", pastes)
	}

	var multi catalog.Paste
	for _, paste := range pastes {
		if len(paste.ChapterIDs) == 2 {
			multi = paste
		}
	}
	if multi.BookID != 1 || multi.FirstIndex != 4 || multi.LastIndex != 5 {
		t.Fatalf("consecutive pair not grouped: %+v", multi)
	}

	// Titles carry the resolved book name.
	for _, title := range paster.calls {
		if !strings.Contains(title, "Seas Of Ink") {
			t.Fatalf("book title not resolved: %q", title)
		}
	}
}

func TestFailedJobResubmitted(t *testing.T) {
	paster := &fakePaster{failures: 1}
	p := newPublisher(paster)

	p.Enqueue(chapter(1, 1))
	if err := p.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	pastes, err := p.Drain()
	if err == nil {
		t.Fatal("expected recorded publish error")
	}
	if len(pastes) != 0 {
		t.Fatalf("failed job emitted a paste: %+v", pastes)
	}

	// The tracked job goes out again next cycle without re-enqueueing.
	if err := p.Step(context.Background()); err != nil {
		t.Fatalf("retry step: %v", err)
	}
	pastes, err = p.Drain()
	if err != nil {
		t.Fatalf("retry drain: %v", err)
	}
	if len(pastes) != 1 || pastes[0].BookID != 1 {
		t.Fatalf("resubmitted job not published: %+v", pastes)
	}
	if len(paster.calls) != 2 {
		t.Fatalf("expected 2 publish attempts, got %d", len(paster.calls))
	}
}
