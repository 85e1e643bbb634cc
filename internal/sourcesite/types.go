package sourcesite

import (
	"time"

	"inkwire/internal/catalog"
)

// Remote response codes the buy endpoint returns.
const (
	codeOK            = 0
	codeAlreadyBought = 2
)

type bookPayload struct {
	BookID       int64  `json:"book_id"`
	Title        string `json:"title"`
	Abbrev       string `json:"abbrev"`
	ChapterCount int    `json:"chapter_count"`
	UpdatedAt    int64  `json:"updated_at"`
}

func (p bookPayload) toBook(slot int) catalog.Book {
	return catalog.Book{
		ID:           p.BookID,
		Title:        p.Title,
		Abbrev:       p.Abbrev,
		ChapterCount: p.ChapterCount,
		LibrarySlot:  slot,
		UpdatedAt:    time.Unix(p.UpdatedAt, 0).UTC(),
	}
}

type libraryResponse struct {
	Items     []bookPayload `json:"items"`
	PageCount int           `json:"page_count"`
}

type chapterPayload struct {
	ChapterID int64  `json:"chapter_id"`
	BookID    int64  `json:"book_id"`
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Privilege bool   `json:"privilege"`
	VIP       bool   `json:"vip"`
	Price     int    `json:"price"`
	Content   string `json:"content,omitempty"`
	PaidPrice int    `json:"paid_price,omitempty"`
}

func (p chapterPayload) toStub() catalog.ChapterStub {
	return catalog.ChapterStub{
		ID:        p.ChapterID,
		BookID:    p.BookID,
		Index:     p.Index,
		Name:      p.Name,
		Privilege: p.Privilege,
		VIP:       p.VIP,
		Price:     p.Price,
	}
}

func (p chapterPayload) toChapter(now time.Time) catalog.Chapter {
	return catalog.Chapter{
		ChapterStub: p.toStub(),
		Content:     p.Content,
		PaidPrice:   p.PaidPrice,
		PurchasedAt: now,
	}
}

type bookResponse struct {
	Book     bookPayload      `json:"book"`
	Chapters []chapterPayload `json:"chapters"`
}

type buyRequest struct {
	BookID    int64 `json:"book_id"`
	ChapterID int64 `json:"chapter_id"`
}

type buyResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Chapter chapterPayload `json:"chapter"`
}

type removeRequest struct {
	BookIDs []int64 `json:"book_ids"`
}
