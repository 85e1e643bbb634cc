package buyer

import "inkwire/internal/catalog"

type itemState int

const (
	stateNew itemState = iota
	stateInProcess
	stateCompleted
)

type queueItem struct {
	stub  catalog.ChapterStub
	state itemState
}

// BuyQueue tracks every chapter between discovery and purchase completion.
// Items are unique by chapter id; re-adding a tracked chapter is a no-op, so
// a stub rediscovered while a purchase is in flight cannot double-buy.
type BuyQueue struct {
	order []int64
	items map[int64]*queueItem
}

// NewBuyQueue constructs an empty queue.
func NewBuyQueue() *BuyQueue {
	return &BuyQueue{items: make(map[int64]*queueItem)}
}

// Add inserts untracked stubs in arrival order.
func (q *BuyQueue) Add(stubs ...catalog.ChapterStub) {
	for _, stub := range stubs {
		if _, ok := q.items[stub.ID]; ok {
			continue
		}
		q.items[stub.ID] = &queueItem{stub: stub}
		q.order = append(q.order, stub.ID)
	}
}

// NewChapters returns the stubs not yet handed to a pool, in arrival order.
func (q *BuyQueue) NewChapters() []catalog.ChapterStub {
	return q.chaptersIn(stateNew)
}

// InProcess returns the stubs currently assigned to a pool. After a failed
// cycle these are resubmitted instead of drawing new work.
func (q *BuyQueue) InProcess() []catalog.ChapterStub {
	return q.chaptersIn(stateInProcess)
}

func (q *BuyQueue) chaptersIn(state itemState) []catalog.ChapterStub {
	var out []catalog.ChapterStub
	for _, id := range q.order {
		if item := q.items[id]; item.state == state {
			out = append(out, item.stub)
		}
	}
	return out
}

// MarkInProcess records that a pool accepted the chapter.
func (q *BuyQueue) MarkInProcess(chapterID int64) {
	if item, ok := q.items[chapterID]; ok && item.state == stateNew {
		item.state = stateInProcess
	}
}

// MarkCompleted records a successful purchase.
func (q *BuyQueue) MarkCompleted(chapterID int64) {
	if item, ok := q.items[chapterID]; ok {
		item.state = stateCompleted
	}
}

// Requeue returns an in-process chapter to the new state for a later
// attempt, used when a pool retires with unfinished work.
func (q *BuyQueue) Requeue(chapterID int64) {
	if item, ok := q.items[chapterID]; ok && item.state == stateInProcess {
		item.state = stateNew
	}
}

// Clean drops completed items.
func (q *BuyQueue) Clean() {
	kept := q.order[:0]
	for _, id := range q.order {
		if q.items[id].state == stateCompleted {
			delete(q.items, id)
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept
}

// Len reports the number of tracked (non-completed plus completed but not
// yet cleaned) items.
func (q *BuyQueue) Len() int { return len(q.items) }
