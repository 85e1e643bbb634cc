package buyer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"inkwire/internal/catalog"
	"inkwire/internal/config"
	"inkwire/internal/logging"
	"inkwire/internal/poller"
	"inkwire/internal/services"
	"inkwire/internal/sourcesite"
)

// CredentialStore is the account/proxy surface the buyer consumes.
type CredentialStore interface {
	RetrieveBuyerAccount(ctx context.Context) (catalog.Account, error)
	RetrievePrivilegedAccount(ctx context.Context) (catalog.Account, error)
	ExpireAccount(ctx context.Context, account catalog.Account) error
	ReleaseAccount(ctx context.Context, account catalog.Account) error
	UpdateFastPass(ctx context.Context, count int, account catalog.Account) error
	RetrieveProxy(ctx context.Context) (catalog.Proxy, error)
}

// ChapterStore persists purchased chapters.
type ChapterStore interface {
	SaveChapter(ctx context.Context, ch catalog.Chapter) error
}

// Buyer is the purchase orchestration service. Input is discovered chapter
// stubs, output is purchased chapters.
type Buyer struct {
	*poller.Base[catalog.ChapterStub, catalog.Chapter]

	client sourcesite.Client
	creds  CredentialStore
	store  ChapterStore

	queue      *BuyQueue
	pools      []*Pool
	privileged []*Pool

	inflightLimit  int
	accountRetries int
	sessionAge     time.Duration
}

// New constructs the buyer over the given boundaries.
func New(cfg *config.Config, client sourcesite.Client, creds CredentialStore, store ChapterStore, logger *slog.Logger) *Buyer {
	return &Buyer{
		Base:           poller.NewBase[catalog.ChapterStub, catalog.Chapter]("buyer", cfg.BuyerInterval(), logger),
		client:         client,
		creds:          creds,
		store:          store,
		queue:          NewBuyQueue(),
		inflightLimit:  cfg.Buyer.InflightLimit,
		accountRetries: cfg.Buyer.AccountRetries,
		sessionAge:     cfg.PoolSessionAge(),
	}
}

// Start launches the supervised polling loop.
func (b *Buyer) Start(ctx context.Context) error {
	return b.Base.Start(ctx, b.Step)
}

// Step runs one purchase cycle: assign queued work to pools within the
// in-flight budget, poll task completions, retire drained pools.
func (b *Buyer) Step(ctx context.Context) error {
	b.queue.Add(b.TakeInput()...)

	toBuy := b.queue.NewChapters()
	if b.NeedsRestart() {
		// After a failed cycle the in-process items are resubmitted so no
		// assignment is lost; the remote already-owned code makes a
		// genuinely duplicated purchase converge.
		resubmit := b.queue.InProcess()
		for _, stub := range resubmit {
			b.queue.Requeue(stub.ID)
		}
		toBuy = b.queue.NewChapters()
	}

	budget := b.inflightLimit - b.totalInflight()
	assignErr := b.assign(ctx, toBuy, budget)

	b.pollPools(ctx)
	b.retirePools(ctx)
	b.queue.Clean()
	return assignErr
}

func (b *Buyer) totalInflight() int {
	total := 0
	for _, pool := range b.allPools() {
		total += pool.Inflight()
	}
	return total
}

// assign hands chapters to pools until the budget runs out. Failure to
// acquire a purchasing account surfaces as one error while already-assigned
// work keeps flowing.
func (b *Buyer) assign(ctx context.Context, stubs []catalog.ChapterStub, budget int) error {
	for _, stub := range stubs {
		if budget <= 0 {
			return nil
		}
		pool, err := b.poolFor(ctx, stub)
		if err != nil {
			return err
		}
		pool.Submit(ctx, stub)
		b.queue.MarkInProcess(stub.ID)
		budget--
	}
	return nil
}

func (b *Buyer) poolFor(ctx context.Context, stub catalog.ChapterStub) (*Pool, error) {
	if stub.Privilege {
		for _, pool := range b.privileged {
			if pool.Capacity() > 0 {
				return pool, nil
			}
		}
		// A drained privileged pool stays tracked until retirePools settles
		// its in-flight work; only a fresh pool is opened alongside it.
		pool, err := b.newPool(ctx, true)
		if err != nil {
			return nil, err
		}
		b.privileged = append(b.privileged, pool)
		return pool, nil
	}

	for _, pool := range b.pools {
		if pool.Capacity() > 0 {
			return pool, nil
		}
	}
	pool, err := b.newPool(ctx, false)
	if err != nil {
		return nil, err
	}
	b.pools = append(b.pools, pool)
	return pool, nil
}

// newPool acquires a validated account with remaining fast-pass currency,
// capped at the configured attempt count, and opens its purchase session.
func (b *Buyer) newPool(ctx context.Context, privileged bool) (*Pool, error) {
	account, err := b.acquireAccount(ctx, privileged)
	if err != nil {
		return nil, err
	}

	proxy, err := b.creds.RetrieveProxy(ctx)
	if err != nil {
		// Direct connection when the proxy store is empty.
		proxy = catalog.Proxy{}
	}
	session, err := b.client.OpenSession(account, proxy)
	if err != nil {
		if releaseErr := b.creds.ReleaseAccount(ctx, account); releaseErr != nil {
			b.RecordError(releaseErr)
		}
		return nil, err
	}

	pool := NewPool(session, b.sessionAge)
	b.Logger().Info("buyer pool opened",
		logging.String(logging.FieldPoolID, pool.ID()),
		logging.Int64(logging.FieldAccountID, account.ID),
		logging.Int("slots", pool.Slots()),
		logging.Bool("privileged", privileged),
		logging.String(logging.FieldEventType, "pool_opened"),
	)
	return pool, nil
}

func (b *Buyer) acquireAccount(ctx context.Context, privileged bool) (catalog.Account, error) {
	retrieve := b.creds.RetrieveBuyerAccount
	kind := "buyer"
	if privileged {
		retrieve = b.creds.RetrievePrivilegedAccount
		kind = "privileged"
	}

	for attempt := 0; attempt < b.accountRetries; attempt++ {
		account, err := retrieve(ctx)
		if err != nil {
			return catalog.Account{}, services.Wrap(services.ErrExhausted, "buyer",
				"account acquisition", fmt.Sprintf("no %s account available", kind), err)
		}
		if b.client.ValidateAccount(ctx, account) && account.FastPass > 0 {
			return account, nil
		}
		if err := b.creds.ExpireAccount(ctx, account); err != nil {
			b.RecordError(err)
		}
	}
	return catalog.Account{}, services.Wrap(services.ErrExhausted, "buyer",
		"account acquisition", fmt.Sprintf("no %s account available after %d attempts", kind, b.accountRetries), nil)
}

// pollPools collects finished purchase tasks, persists and emits successes,
// and records failures of chapters the pools gave up on.
func (b *Buyer) pollPools(ctx context.Context) {
	for _, pool := range b.allPools() {
		done, errs := pool.Poll(ctx)
		for _, err := range errs {
			b.RecordError(err)
		}
		for _, chapter := range done {
			if err := b.store.SaveChapter(ctx, chapter); err != nil {
				b.RecordError(err)
			}
			b.queue.MarkCompleted(chapter.ID)
			b.Emit(chapter)
		}
	}
}

// retirePools drains empty pools: uncompleted work goes back to the queue,
// the store's fast-pass view is refreshed, the account is released, and the
// session closed.
func (b *Buyer) retirePools(ctx context.Context) {
	b.pools = b.retireEmpty(ctx, b.pools)
	b.privileged = b.retireEmpty(ctx, b.privileged)
}

func (b *Buyer) retireEmpty(ctx context.Context, pools []*Pool) []*Pool {
	kept := pools[:0]
	for _, pool := range pools {
		if !pool.Empty() {
			kept = append(kept, pool)
			continue
		}
		b.retire(ctx, pool)
	}
	return kept
}

func (b *Buyer) retire(ctx context.Context, pool *Pool) {
	for _, stub := range pool.UncompletedChapters() {
		b.queue.Requeue(stub.ID)
	}
	account := pool.Account()
	if err := b.creds.UpdateFastPass(ctx, pool.Slots(), account); err != nil {
		b.RecordError(err)
	}
	if err := b.creds.ReleaseAccount(ctx, account); err != nil {
		b.RecordError(err)
	}
	if err := pool.Retire(); err != nil {
		b.RecordError(err)
	}
	b.Logger().Info("buyer pool retired",
		logging.String(logging.FieldPoolID, pool.ID()),
		logging.Int64(logging.FieldAccountID, account.ID),
		logging.Int("remaining_slots", pool.Slots()),
		logging.String(logging.FieldEventType, "pool_retired"),
	)
}

// Shutdown retires every pool regardless of state. In-flight purchase tasks
// are orphaned; their completions are dropped with the process.
func (b *Buyer) Shutdown(ctx context.Context) {
	for _, pool := range b.allPools() {
		b.retire(ctx, pool)
	}
	b.pools = nil
	b.privileged = nil
}

func (b *Buyer) allPools() []*Pool {
	pools := b.pools
	return append(pools[:len(pools):len(pools)], b.privileged...)
}
