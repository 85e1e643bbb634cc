package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"inkwire/internal/catalog"
	"inkwire/internal/config"
	"inkwire/internal/logging"
	"inkwire/internal/pastebin"
	"inkwire/internal/poller"
)

// BookResolver supplies book snapshots for paste titles.
type BookResolver interface {
	CompleteBook(ctx context.Context, bookID int64) (catalog.Book, []catalog.ChapterStub, error)
}

// Publisher is the upload service. Input is purchased chapters, output is
// completed pastes.
type Publisher struct {
	*poller.Base[catalog.Chapter, catalog.Paste]

	client    pastebin.Client
	books     BookResolver
	sourceTag string

	pending []catalog.PasteJob
}

// New constructs the publisher.
func New(cfg *config.Config, client pastebin.Client, books BookResolver, logger *slog.Logger) *Publisher {
	return &Publisher{
		Base:      poller.NewBase[catalog.Chapter, catalog.Paste]("publisher", cfg.PublisherInterval(), logger),
		client:    client,
		books:     books,
		sourceTag: cfg.Source.SourceTag,
	}
}

// Start launches the supervised polling loop.
func (p *Publisher) Start(ctx context.Context) error {
	return p.Base.Start(ctx, p.Step)
}

// Step builds jobs from this cycle's chapters, adds previously failed jobs,
// and uploads everything concurrently.
func (p *Publisher) Step(ctx context.Context) error {
	jobs := p.pending
	p.pending = nil
	jobs = append(jobs, p.buildJobs(ctx, p.TakeInput())...)
	if len(jobs) == 0 {
		return nil
	}

	type outcome struct {
		job catalog.PasteJob
		url string
		err error
	}
	results := make(chan outcome, len(jobs))
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job catalog.PasteJob) {
			defer wg.Done()
			url, err := p.client.Publish(ctx, job.Title(), job.Body(p.sourceTag, time.Now()))
			results <- outcome{job: job, url: url, err: err}
		}(job)
	}
	wg.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			// Kept tracked until it terminates, never dropped.
			p.pending = append(p.pending, res.job)
			p.RecordError(fmt.Errorf("publish %s: %w", res.job.Title(), res.err))
			continue
		}
		paste := catalog.NewPaste(res.job, res.url)
		p.Logger().Info("paste published",
			logging.Int64(logging.FieldBookID, paste.BookID),
			logging.Int("chapters", len(paste.ChapterIDs)),
			logging.String("url", paste.URL),
			logging.String(logging.FieldEventType, "paste_published"),
		)
		p.Emit(paste)
	}
	return nil
}

// buildJobs groups the cycle's chapters per book and partitions each group
// into upload units.
func (p *Publisher) buildJobs(ctx context.Context, chapters []catalog.Chapter) []catalog.PasteJob {
	byBook := make(map[int64][]catalog.Chapter)
	for _, ch := range chapters {
		byBook[ch.BookID] = append(byBook[ch.BookID], ch)
	}

	var jobs []catalog.PasteJob
	for bookID, group := range byBook {
		book, _, err := p.books.CompleteBook(ctx, bookID)
		if err != nil {
			book = catalog.Book{ID: bookID}
		}
		for _, run := range GroupRuns(group) {
			if len(run) == 1 {
				jobs = append(jobs, catalog.NewPasteRequest(book, run[0]))
				continue
			}
			jobs = append(jobs, catalog.NewMultiPasteRequest(book, run))
		}
	}
	return jobs
}

// GroupRuns sorts chapters by index and partitions them into maximal runs of
// consecutive indices; a gap greater than one starts a new run.
func GroupRuns(chapters []catalog.Chapter) [][]catalog.Chapter {
	if len(chapters) == 0 {
		return nil
	}
	sorted := make([]catalog.Chapter, len(chapters))
	copy(sorted, chapters)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	runs := [][]catalog.Chapter{{sorted[0]}}
	for _, ch := range sorted[1:] {
		last := runs[len(runs)-1]
		if ch.Index-last[len(last)-1].Index > 1 {
			runs = append(runs, []catalog.Chapter{ch})
			continue
		}
		runs[len(runs)-1] = append(last, ch)
	}
	return runs
}
