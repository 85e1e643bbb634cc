package buyer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"inkwire/internal/catalog"
)

// fakeSession is a scriptable purchase session. failures[id] is the number
// of times a buy of that chapter fails before succeeding; a chapter with an
// entry in holds blocks until its channel is closed.
type fakeSession struct {
	mu       sync.Mutex
	account  catalog.Account
	failures map[int64]int
	holds    map[int64]chan struct{}
	bought   []int64
	closed   bool
}

func newFakeSession(account catalog.Account) *fakeSession {
	return &fakeSession{account: account, failures: make(map[int64]int), holds: make(map[int64]chan struct{})}
}

func (f *fakeSession) Account() catalog.Account { return f.account }

func (f *fakeSession) BuyChapter(_ context.Context, bookID, chapterID int64) (catalog.Chapter, error) {
	f.mu.Lock()
	if hold, ok := f.holds[chapterID]; ok {
		f.mu.Unlock()
		<-hold
		f.mu.Lock()
	}
	defer f.mu.Unlock()
	if f.failures[chapterID] > 0 {
		f.failures[chapterID]--
		return catalog.Chapter{}, errors.New("purchase rejected")
	}
	f.bought = append(f.bought, chapterID)
	return catalog.Chapter{
		ChapterStub: catalog.ChapterStub{ID: chapterID, BookID: bookID, Index: int(chapterID)},
		Content:     "text",
		PurchasedAt: time.Now(),
	}, nil
}

func (f *fakeSession) FetchOwnedChapter(_ context.Context, bookID, chapterID int64) (catalog.Chapter, error) {
	return catalog.Chapter{
		ChapterStub: catalog.ChapterStub{ID: chapterID, BookID: bookID, Index: int(chapterID)},
		Content:     "text",
		PurchasedAt: time.Now(),
	}, nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSession) buyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bought)
}

// pollUntil drives Poll until cond holds or the deadline passes.
func pollUntil(t *testing.T, pool *Pool, cond func(done []catalog.Chapter, errs []error) bool) {
	t.Helper()
	var done []catalog.Chapter
	var errs []error
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		d, e := pool.Poll(context.Background())
		done = append(done, d...)
		errs = append(errs, e...)
		if cond(done, errs) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("pool did not settle: done=%d errs=%d", len(done), len(errs))
}

func TestPoolCapacityTracksSlots(t *testing.T) {
	session := newFakeSession(catalog.Account{ID: 1, Token: "t", FastPass: 3})
	pool := NewPool(session, time.Minute)

	if pool.Capacity() != 3 {
		t.Fatalf("expected capacity 3, got %d", pool.Capacity())
	}
	pool.Submit(context.Background(), stub(1))
	if pool.Capacity() != 2 {
		t.Fatalf("in-flight task not counted: %d", pool.Capacity())
	}
	pollUntil(t, pool, func(done []catalog.Chapter, _ []error) bool { return len(done) == 1 })
	// A spent slot stays spent after the task completes.
	if pool.Capacity() != 2 {
		t.Fatalf("slot not consumed by purchase: %d", pool.Capacity())
	}
}

func TestPoolAgedSessionHasNoCapacity(t *testing.T) {
	session := newFakeSession(catalog.Account{ID: 1, Token: "t", FastPass: 5})
	pool := NewPool(session, 180*time.Second)

	base := pool.createdAt
	pool.clock = func() time.Time { return base.Add(179 * time.Second) }
	if pool.Capacity() == 0 {
		t.Fatal("capacity lost before session age limit")
	}
	pool.clock = func() time.Time { return base.Add(180 * time.Second) }
	if pool.Capacity() != 0 {
		t.Fatalf("aged session still has capacity %d", pool.Capacity())
	}
	if !pool.Empty() {
		t.Fatal("aged idle pool should be retirable")
	}
}

func TestPoolRetriesOnceThenSurfaces(t *testing.T) {
	session := newFakeSession(catalog.Account{ID: 1, Token: "t", FastPass: 5})
	session.failures[7] = 1
	pool := NewPool(session, time.Minute)

	pool.Submit(context.Background(), stub(7))
	pollUntil(t, pool, func(done []catalog.Chapter, _ []error) bool { return len(done) == 1 })
	if session.buyCount() != 1 {
		t.Fatalf("expected retry to succeed after 1 failure, bought=%d", session.buyCount())
	}
}

func TestPoolSecondFailureZeroesCapacity(t *testing.T) {
	session := newFakeSession(catalog.Account{ID: 1, Token: "t", FastPass: 5})
	session.failures[7] = 2
	pool := NewPool(session, time.Minute)

	pool.Submit(context.Background(), stub(7))
	pollUntil(t, pool, func(_ []catalog.Chapter, errs []error) bool { return len(errs) == 1 })

	if pool.Capacity() != 0 {
		t.Fatalf("failed pool still has capacity %d", pool.Capacity())
	}
	uncompleted := pool.UncompletedChapters()
	if len(uncompleted) != 1 || uncompleted[0].ID != 7 {
		t.Fatalf("uncompleted work dropped: %+v", uncompleted)
	}
	if !pool.Empty() {
		t.Fatal("failed pool should be retirable")
	}
}

func TestPoolRetireClosesSession(t *testing.T) {
	session := newFakeSession(catalog.Account{ID: 1, Token: "t", FastPass: 1})
	pool := NewPool(session, time.Minute)
	if err := pool.Retire(); err != nil {
		t.Fatalf("retire: %v", err)
	}
	if !session.closed {
		t.Fatal("session not closed on retire")
	}
}
