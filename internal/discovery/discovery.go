package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"inkwire/internal/catalog"
	"inkwire/internal/config"
	"inkwire/internal/logging"
	"inkwire/internal/poller"
	"inkwire/internal/services"
	"inkwire/internal/sourcesite"
)

// Store is the persisted-shelf surface the discoverer consumes: the complete
// stored chapter list per book, and the writeback of fresh snapshots.
type Store interface {
	CompleteBook(ctx context.Context, bookID int64) (catalog.Book, []catalog.ChapterStub, error)
	InsertBook(ctx context.Context, book catalog.Book, stubs []catalog.ChapterStub) error
}

// Discoverer accepts updated book snapshots and emits the chapter stubs that
// exist remotely but not on the shelf.
type Discoverer struct {
	*poller.Base[catalog.Book, catalog.ChapterStub]

	client sourcesite.Client
	store  Store

	pending map[int64]catalog.Book
}

// New constructs the discoverer.
func New(cfg *config.Config, client sourcesite.Client, store Store, logger *slog.Logger) *Discoverer {
	return &Discoverer{
		Base:    poller.NewBase[catalog.Book, catalog.ChapterStub]("chapter-discovery", cfg.DiscoveryInterval(), logger),
		client:  client,
		store:   store,
		pending: make(map[int64]catalog.Book),
	}
}

// Start launches the supervised polling loop.
func (d *Discoverer) Start(ctx context.Context) error {
	return d.Base.Start(ctx, d.Step)
}

type bookResult struct {
	book  catalog.Book
	stubs []catalog.ChapterStub
	err   error
}

// Step diffs every enqueued (and previously pending) book concurrently. A
// per-book failure parks the book for the next cycle instead of failing the
// batch.
func (d *Discoverer) Step(ctx context.Context) error {
	batch := make(map[int64]catalog.Book, len(d.pending))
	for id, book := range d.pending {
		batch[id] = book
	}
	for _, book := range d.TakeInput() {
		batch[book.ID] = book
	}
	d.pending = make(map[int64]catalog.Book)
	if len(batch) == 0 {
		return nil
	}

	results := make(chan bookResult, len(batch))
	var wg sync.WaitGroup
	for _, book := range batch {
		wg.Add(1)
		go func(book catalog.Book) {
			defer wg.Done()
			stubs, err := d.discoverBook(ctx, book)
			results <- bookResult{book: book, stubs: stubs, err: err}
		}(book)
	}
	wg.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			d.pending[res.book.ID] = res.book
			d.RecordError(fmt.Errorf("book %d: %w", res.book.ID, res.err))
			continue
		}
		d.Emit(res.stubs...)
	}
	if len(d.pending) > 0 {
		d.Logger().Info("books parked for retry",
			logging.Int("count", len(d.pending)),
			logging.String(logging.FieldEventType, "discovery_retry"),
		)
	}
	return nil
}

// discoverBook fetches the remote chapter list, diffs it against the shelf,
// and writes the fresh snapshot back so the next library sweep sees it.
func (d *Discoverer) discoverBook(ctx context.Context, book catalog.Book) ([]catalog.ChapterStub, error) {
	remote, remoteStubs, err := d.client.FetchBook(ctx, book.ID)
	if err != nil {
		return nil, err
	}

	_, stored, err := d.store.CompleteBook(ctx, book.ID)
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		return nil, err
	}
	known := make(map[int64]struct{}, len(stored))
	for _, stub := range stored {
		known[stub.ID] = struct{}{}
	}

	var fresh []catalog.ChapterStub
	for _, stub := range remoteStubs {
		if _, ok := known[stub.ID]; !ok {
			fresh = append(fresh, stub)
		}
	}

	remote.LibrarySlot = book.LibrarySlot
	if err := d.store.InsertBook(ctx, remote, remoteStubs); err != nil {
		return nil, err
	}
	return fresh, nil
}
