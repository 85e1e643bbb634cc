package buyer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"inkwire/internal/catalog"
	"inkwire/internal/services"
	"inkwire/internal/sourcesite"
)

type buyResult struct {
	stub    catalog.ChapterStub
	chapter catalog.Chapter
	err     error
}

// Pool purchases chapters through one account's session. All bookkeeping
// runs on the buyer's step; only the purchase tasks themselves are
// goroutines, reporting through the results channel.
type Pool struct {
	id      string
	session sourcesite.Session
	account catalog.Account

	createdAt  time.Time
	maxAge     time.Duration
	slots      int
	forcedZero bool

	inflight    map[int64]catalog.ChapterStub
	retried     map[int64]bool
	uncompleted []catalog.ChapterStub
	results     chan buyResult

	clock func() time.Time
}

// NewPool seeds a pool with the account's remaining fast-pass currency as
// its slot budget.
func NewPool(session sourcesite.Session, maxAge time.Duration) *Pool {
	account := session.Account()
	buffer := account.FastPass + 2
	if buffer < 16 {
		buffer = 16
	}
	return &Pool{
		id:        uuid.NewString(),
		session:   session,
		account:   account,
		createdAt: time.Now(),
		maxAge:    maxAge,
		slots:     account.FastPass,
		inflight:  make(map[int64]catalog.ChapterStub),
		retried:   make(map[int64]bool),
		results:   make(chan buyResult, buffer),
		clock:     time.Now,
	}
}

func (p *Pool) ID() string               { return p.id }
func (p *Pool) Account() catalog.Account { return p.account }

// Slots returns the remaining fast-pass budget, used to refresh the
// credential store's view on release.
func (p *Pool) Slots() int { return p.slots }

// Inflight reports the number of purchase tasks not yet polled to completion.
func (p *Pool) Inflight() int { return len(p.inflight) }

// Capacity returns the number of chapters the pool can still accept. An aged
// session or a surfaced failure forces it to zero regardless of slots.
func (p *Pool) Capacity() int {
	if p.forcedZero || p.clock().Sub(p.createdAt) >= p.maxAge {
		return 0
	}
	c := p.slots - len(p.inflight)
	if c < 0 {
		return 0
	}
	return c
}

// Empty reports whether the pool has nothing running and cannot accept more,
// i.e. it is ready to retire.
func (p *Pool) Empty() bool {
	return len(p.inflight) == 0 && p.Capacity() == 0
}

// Submit launches a purchase task for the stub. The remote already-owned
// rejection is completed by fetching the owned copy instead, which makes a
// duplicate attempt after a restart converge on success.
func (p *Pool) Submit(ctx context.Context, stub catalog.ChapterStub) {
	p.inflight[stub.ID] = stub
	go func() {
		chapter, err := p.session.BuyChapter(ctx, stub.BookID, stub.ID)
		if errors.Is(err, services.ErrAlreadyOwned) {
			chapter, err = p.session.FetchOwnedChapter(ctx, stub.BookID, stub.ID)
		}
		p.results <- buyResult{stub: stub, chapter: chapter, err: err}
	}()
}

// Poll drains finished purchase tasks. A failed task gets exactly one
// reattempt on this pool while capacity remains; a second failure surfaces
// the chapter as uncompleted and zeroes the pool's capacity. Returned
// chapters are the successful purchases; recorded errors accompany
// uncompleted work.
func (p *Pool) Poll(ctx context.Context) ([]catalog.Chapter, []error) {
	var done []catalog.Chapter
	var errs []error
	for {
		select {
		case res := <-p.results:
			delete(p.inflight, res.stub.ID)
			if res.err == nil {
				if p.slots > 0 {
					p.slots--
				}
				done = append(done, res.chapter)
				continue
			}
			if !p.retried[res.stub.ID] && p.Capacity() > 0 {
				p.retried[res.stub.ID] = true
				p.Submit(ctx, res.stub)
				continue
			}
			p.uncompleted = append(p.uncompleted, res.stub)
			p.forcedZero = true
			errs = append(errs, res.err)
		default:
			return done, errs
		}
	}
}

// UncompletedChapters returns work the pool gave up on; the caller requeues
// it so nothing is dropped.
func (p *Pool) UncompletedChapters() []catalog.ChapterStub {
	out := p.uncompleted
	p.uncompleted = nil
	return out
}

// Retire closes the pool's session.
func (p *Pool) Retire() error {
	return p.session.Close()
}
