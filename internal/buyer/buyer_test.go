package buyer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"inkwire/internal/catalog"
	"inkwire/internal/config"
	"inkwire/internal/logging"
	"inkwire/internal/services"
	"inkwire/internal/sourcesite"
)

type fakeClient struct {
	mu       sync.Mutex
	failures map[int64]int
	holds    map[int64]chan struct{}
	sessions []*fakeSession
}

func (f *fakeClient) OpenSession(account catalog.Account, _ catalog.Proxy) (sourcesite.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session := newFakeSession(account)
	for id, n := range f.failures {
		session.failures[id] = n
	}
	for id, hold := range f.holds {
		session.holds[id] = hold
	}
	f.sessions = append(f.sessions, session)
	return session, nil
}

func (f *fakeClient) ValidateAccount(_ context.Context, account catalog.Account) bool {
	return account.Token != "bad"
}

func (f *fakeClient) FetchLibrary(context.Context, catalog.Account, catalog.Proxy) ([]catalog.Book, int, error) {
	return nil, 0, nil
}
func (f *fakeClient) FetchBook(context.Context, int64) (catalog.Book, []catalog.ChapterStub, error) {
	return catalog.Book{}, nil, nil
}
func (f *fakeClient) ValidateProxy(context.Context, catalog.Proxy) bool { return true }
func (f *fakeClient) RemoveFromLibrary(context.Context, catalog.Account, catalog.Proxy, []catalog.Book) error {
	return nil
}

type fakeCreds struct {
	accounts      []catalog.Account
	invalidSupply bool
	nextID        int64

	expired      []int64
	released     []int64
	fastPassSets map[int64]int
}

func (f *fakeCreds) RetrieveBuyerAccount(context.Context) (catalog.Account, error) {
	if len(f.accounts) > 0 {
		account := f.accounts[0]
		f.accounts = f.accounts[1:]
		return account, nil
	}
	if f.invalidSupply {
		f.nextID++
		return catalog.Account{ID: 1000 + f.nextID, Token: "bad", FastPass: 1}, nil
	}
	return catalog.Account{}, services.ErrExhausted
}

func (f *fakeCreds) RetrievePrivilegedAccount(ctx context.Context) (catalog.Account, error) {
	return f.RetrieveBuyerAccount(ctx)
}

func (f *fakeCreds) ExpireAccount(_ context.Context, account catalog.Account) error {
	f.expired = append(f.expired, account.ID)
	return nil
}

func (f *fakeCreds) ReleaseAccount(_ context.Context, account catalog.Account) error {
	f.released = append(f.released, account.ID)
	return nil
}

func (f *fakeCreds) UpdateFastPass(_ context.Context, count int, account catalog.Account) error {
	if f.fastPassSets == nil {
		f.fastPassSets = make(map[int64]int)
	}
	f.fastPassSets[account.ID] = count
	return nil
}

func (f *fakeCreds) RetrieveProxy(context.Context) (catalog.Proxy, error) {
	return catalog.Proxy{ID: 1, Address: "p:1"}, nil
}

type fakeChapterStore struct {
	mu    sync.Mutex
	saved []int64
}

func (f *fakeChapterStore) SaveChapter(_ context.Context, ch catalog.Chapter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, ch.ID)
	return nil
}

func newBuyer(client *fakeClient, creds *fakeCreds, store *fakeChapterStore) *Buyer {
	cfg := config.Default()
	return New(&cfg, client, creds, store, logging.NewNop())
}

// driveSteps runs purchase cycles until cond holds over the accumulated
// drained output, tolerating recorded errors along the way.
func driveSteps(t *testing.T, b *Buyer, cond func(chapters []catalog.Chapter, errs []error) bool) ([]catalog.Chapter, []error) {
	t.Helper()
	var chapters []catalog.Chapter
	var errs []error
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := b.Step(context.Background()); err != nil {
			errs = append(errs, err)
		}
		drained, err := b.Drain()
		chapters = append(chapters, drained...)
		if err != nil {
			errs = append(errs, err)
		}
		if cond(chapters, errs) {
			return chapters, errs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("buyer did not settle: chapters=%d errs=%v", len(chapters), errs)
	return nil, nil
}

func TestPurchaseFlow(t *testing.T) {
	client := &fakeClient{}
	creds := &fakeCreds{accounts: []catalog.Account{{ID: 1, Token: "t", FastPass: 2}}}
	store := &fakeChapterStore{}
	b := newBuyer(client, creds, store)

	b.Enqueue(stub(1), stub(2))
	chapters, _ := driveSteps(t, b, func(chapters []catalog.Chapter, _ []error) bool {
		return len(chapters) == 2
	})
	if chapters[0].Content != "text" {
		t.Fatalf("chapter content missing: %+v", chapters[0])
	}
	if len(store.saved) != 2 {
		t.Fatalf("chapters not persisted: %v", store.saved)
	}

	// Both slots spent: the pool retires, refreshing the store's fast-pass
	// view and releasing the account.
	driveSteps(t, b, func([]catalog.Chapter, []error) bool {
		return len(creds.released) == 1
	})
	if creds.fastPassSets[1] != 0 {
		t.Fatalf("fast pass not refreshed on release: %v", creds.fastPassSets)
	}
	if !client.sessions[0].closed {
		t.Fatal("session not closed on retirement")
	}
	if b.queue.Len() != 0 {
		t.Fatalf("queue not cleaned: %d tracked", b.queue.Len())
	}
}

func TestFailedChapterRequeuedOnPoolRetirement(t *testing.T) {
	client := &fakeClient{failures: map[int64]int{7: 2}}
	creds := &fakeCreds{accounts: []catalog.Account{{ID: 1, Token: "t", FastPass: 5}}}
	b := newBuyer(client, creds, &fakeChapterStore{})

	b.Enqueue(stub(7))
	driveSteps(t, b, func(_ []catalog.Chapter, errs []error) bool {
		return len(creds.released) == 1
	})

	// The one same-pool reattempt also failed; the chapter went back to the
	// queue when the pool retired, never dropped.
	if got := b.queue.NewChapters(); len(got) != 1 || got[0].ID != 7 {
		t.Fatalf("uncompleted chapter not requeued: %+v", got)
	}
	if !client.sessions[0].closed {
		t.Fatal("failed pool's session not closed")
	}
}

func TestAccountExhaustionSurfacesOnce(t *testing.T) {
	client := &fakeClient{}
	creds := &fakeCreds{accounts: []catalog.Account{{ID: 1, Token: "t", FastPass: 1}}}
	store := &fakeChapterStore{}
	b := newBuyer(client, creds, store)

	// First chapter drains the only good account's single slot.
	b.Enqueue(stub(1))
	driveSteps(t, b, func(chapters []catalog.Chapter, _ []error) bool {
		return len(chapters) == 1 && len(creds.released) == 1
	})

	// The store now supplies only invalid accounts; acquiring for the next
	// chapter burns the full retry cap and surfaces a single error.
	creds.invalidSupply = true
	b.Enqueue(stub(2))
	err := b.Step(context.Background())
	if !errors.Is(err, services.ErrExhausted) {
		t.Fatalf("expected exhaustion error, got %v", err)
	}
	if len(creds.expired) != 10 {
		t.Fatalf("expected 10 expired candidates, got %d", len(creds.expired))
	}
	// The chapter stays queued for a later cycle.
	if got := b.queue.NewChapters(); len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("unassignable chapter lost: %+v", got)
	}
}

func TestPrivilegedChapterUsesPrivilegedPool(t *testing.T) {
	client := &fakeClient{}
	creds := &fakeCreds{accounts: []catalog.Account{
		{ID: 1, Token: "t", FastPass: 5},
		{ID: 2, Token: "t", FastPass: 5, Privileged: true},
	}}
	b := newBuyer(client, creds, &fakeChapterStore{})

	gated := stub(9)
	gated.Privilege = true
	b.Enqueue(stub(1), gated)
	driveSteps(t, b, func(chapters []catalog.Chapter, _ []error) bool {
		return len(chapters) == 2
	})

	if len(b.privileged) != 1 || b.privileged[0].Account().ID != 2 {
		t.Fatalf("privileged pool not created from privileged account")
	}
	if len(b.pools) != 1 || b.pools[0].Account().ID != 1 {
		t.Fatalf("regular pool misassigned: %+v", b.pools)
	}
}

func TestAgedPrivilegedPoolDrainedBeforeReplacement(t *testing.T) {
	hold := make(chan struct{})
	client := &fakeClient{holds: map[int64]chan struct{}{1: hold}}
	creds := &fakeCreds{accounts: []catalog.Account{
		{ID: 2, Token: "t", FastPass: 5, Privileged: true},
		{ID: 3, Token: "t", FastPass: 5, Privileged: true},
	}}
	store := &fakeChapterStore{}
	b := newBuyer(client, creds, store)

	gated1 := stub(1)
	gated1.Privilege = true
	b.Enqueue(gated1)
	if err := b.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(b.privileged) != 1 || b.privileged[0].Inflight() != 1 {
		t.Fatalf("gated chapter not in flight on privileged pool")
	}

	// Age the first pool past the session limit while its purchase is still
	// running, then submit more gated work. A fresh pool must open without
	// abandoning the old one.
	old := b.privileged[0]
	base := old.createdAt
	old.clock = func() time.Time { return base.Add(181 * time.Second) }

	gated2 := stub(2)
	gated2.Privilege = true
	b.Enqueue(gated2)

	chapters, _ := driveSteps(t, b, func(chapters []catalog.Chapter, _ []error) bool {
		if len(chapters) != 1 {
			return false
		}
		close(hold)
		return true
	})
	if chapters[0].ID != 2 {
		t.Fatalf("fresh pool did not take over gated work: %+v", chapters)
	}

	// Once unblocked, the old pool's chapter completes and the pool retires:
	// nothing stuck in process, account released, session closed.
	driveSteps(t, b, func(chapters []catalog.Chapter, _ []error) bool {
		return len(chapters) == 1 && len(creds.released) == 1
	})
	if got := b.queue.InProcess(); len(got) != 0 {
		t.Fatalf("chapters stuck in process on a replaced pool: %+v", got)
	}
	if creds.released[0] != 2 {
		t.Fatalf("old privileged account not released: %v", creds.released)
	}
	if !client.sessions[0].closed {
		t.Fatal("old privileged session not closed")
	}
}

func TestInflightBudgetCapsAssignment(t *testing.T) {
	client := &fakeClient{}
	creds := &fakeCreds{accounts: []catalog.Account{{ID: 1, Token: "t", FastPass: 100}}}
	cfg := config.Default()
	cfg.Buyer.InflightLimit = 3
	b := New(&cfg, client, creds, &fakeChapterStore{}, logging.NewNop())

	for i := int64(1); i <= 10; i++ {
		b.Enqueue(stub(i))
	}
	// One step assigns at most the budget.
	if err := b.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if got := len(b.queue.InProcess()); got > 3 {
		t.Fatalf("in-flight budget exceeded: %d assigned", got)
	}
	// Later cycles drain the rest.
	driveSteps(t, b, func(chapters []catalog.Chapter, _ []error) bool {
		return len(chapters) == 10
	})
}
