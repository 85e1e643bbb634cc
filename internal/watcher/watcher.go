package watcher

import (
	"context"
	"fmt"
	"log/slog"

	"inkwire/internal/catalog"
	"inkwire/internal/config"
	"inkwire/internal/logging"
	"inkwire/internal/poller"
	"inkwire/internal/services"
	"inkwire/internal/sourcesite"
)

// Ping is a frontend request for an immediate library check. Enqueueing one
// and waking the loop makes the next sweep run right away; the ping itself
// carries no payload and is absorbed by that step.
type Ping struct{}

// CredentialStore is the account/proxy surface the watcher consumes.
type CredentialStore interface {
	RetrieveLibraryAccount(ctx context.Context, slot int) (catalog.Account, error)
	ExpireAccount(ctx context.Context, account catalog.Account) error
	RetrieveProxy(ctx context.Context) (catalog.Proxy, error)
	ExpireProxy(ctx context.Context, proxy catalog.Proxy) error
}

// BookStore is the persisted-snapshot surface the watcher reads.
type BookStore interface {
	AllBooks(ctx context.Context) ([]catalog.Book, error)
}

// Watcher is the library polling service. Output items are updated book
// snapshots with their slot assignment filled in.
type Watcher struct {
	*poller.Base[Ping, catalog.Book]

	client sourcesite.Client
	creds  CredentialStore
	books  BookStore

	slots   int
	retries int

	accounts map[int]catalog.Account
	proxy    catalog.Proxy
	hasProxy bool
}

// New constructs the watcher over the given boundaries.
func New(cfg *config.Config, client sourcesite.Client, creds CredentialStore, books BookStore, logger *slog.Logger) *Watcher {
	return &Watcher{
		Base:     poller.NewBase[Ping, catalog.Book]("library-watcher", cfg.WatcherInterval(), logger),
		client:   client,
		creds:    creds,
		books:    books,
		slots:    cfg.Library.Slots,
		retries:  cfg.Library.AccountRetries,
		accounts: make(map[int]catalog.Account),
	}
}

// Start launches the supervised polling loop.
func (w *Watcher) Start(ctx context.Context) error {
	return w.Base.Start(ctx, w.Step)
}

// Step runs one full library sweep across all slots.
func (w *Watcher) Step(ctx context.Context) error {
	w.TakeInput()

	if err := w.ensureProxy(ctx); err != nil {
		return err
	}

	persisted, err := w.books.AllBooks(ctx)
	if err != nil {
		return fmt.Errorf("load persisted books: %w", err)
	}
	bySlot := make(map[int]map[int64]catalog.Book)
	for _, book := range persisted {
		if bySlot[book.LibrarySlot] == nil {
			bySlot[book.LibrarySlot] = make(map[int64]catalog.Book)
		}
		bySlot[book.LibrarySlot][book.ID] = book
	}

	for slot := 0; slot < w.slots; slot++ {
		account, err := w.ensureAccount(ctx, slot)
		if err != nil {
			return err
		}
		if err := w.sweepSlot(ctx, slot, account, bySlot[slot]); err != nil {
			w.RecordError(err)
		}
	}
	return nil
}

// sweepSlot compares one slot's remote listing against the persisted
// snapshots, emitting updated books and removing strays. All remote calls go
// through the validated proxy.
func (w *Watcher) sweepSlot(ctx context.Context, slot int, account catalog.Account, known map[int64]catalog.Book) error {
	remote, _, err := w.client.FetchLibrary(ctx, account, w.proxy)
	if err != nil {
		return err
	}

	var strays []catalog.Book
	for _, item := range remote {
		stored, ok := known[item.ID]
		if !ok {
			strays = append(strays, item)
			continue
		}
		if item.NewerThan(stored) {
			item.LibrarySlot = slot
			w.Emit(item)
		}
	}
	if len(strays) == 0 {
		return nil
	}
	w.Logger().Info("removing stray library entries",
		logging.Int("count", len(strays)),
		logging.Int("slot", slot),
		logging.String(logging.FieldEventType, "library_cleanup"),
	)
	return w.client.RemoveFromLibrary(ctx, account, w.proxy, strays)
}

// ensureAccount returns a validated account for the slot, replacing an
// invalid one through the credential store up to the configured cap.
func (w *Watcher) ensureAccount(ctx context.Context, slot int) (catalog.Account, error) {
	if account, ok := w.accounts[slot]; ok {
		if w.client.ValidateAccount(ctx, account) {
			return account, nil
		}
		delete(w.accounts, slot)
		if err := w.creds.ExpireAccount(ctx, account); err != nil {
			w.RecordError(err)
		}
	}

	for attempt := 0; attempt < w.retries; attempt++ {
		account, err := w.creds.RetrieveLibraryAccount(ctx, slot)
		if err != nil {
			return catalog.Account{}, services.Wrap(services.ErrExhausted, "library-watcher",
				"account retrieval", fmt.Sprintf("slot %d", slot), err)
		}
		if w.client.ValidateAccount(ctx, account) {
			account.LibrarySlot = slot
			w.accounts[slot] = account
			return account, nil
		}
		if err := w.creds.ExpireAccount(ctx, account); err != nil {
			w.RecordError(err)
		}
	}
	return catalog.Account{}, services.Wrap(services.ErrExhausted, "library-watcher",
		"account retrieval", fmt.Sprintf("slot %d: no valid account after %d attempts", slot, w.retries), nil)
}

// ensureProxy keeps one validated proxy cached, replacing it the same way
// accounts are replaced.
func (w *Watcher) ensureProxy(ctx context.Context) error {
	if w.hasProxy {
		if w.client.ValidateProxy(ctx, w.proxy) {
			return nil
		}
		w.hasProxy = false
		if err := w.creds.ExpireProxy(ctx, w.proxy); err != nil {
			w.RecordError(err)
		}
	}

	for attempt := 0; attempt < w.retries; attempt++ {
		proxy, err := w.creds.RetrieveProxy(ctx)
		if err != nil {
			return services.Wrap(services.ErrExhausted, "library-watcher", "proxy retrieval", "", err)
		}
		if w.client.ValidateProxy(ctx, proxy) {
			w.proxy = proxy
			w.hasProxy = true
			return nil
		}
		if err := w.creds.ExpireProxy(ctx, proxy); err != nil {
			w.RecordError(err)
		}
	}
	return services.Wrap(services.ErrExhausted, "library-watcher", "proxy retrieval",
		fmt.Sprintf("no valid proxy after %d attempts", w.retries), nil)
}
