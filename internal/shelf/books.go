package shelf

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"inkwire/internal/catalog"
	"inkwire/internal/services"
)

// AllBooks returns every persisted book snapshot.
func (s *Store) AllBooks(ctx context.Context) ([]catalog.Book, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, abbrev, chapter_count, library_slot, updated_at FROM books ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var books []catalog.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// CompleteBook returns the persisted snapshot and full chapter list for one
// book. A missing book yields a not-found error.
func (s *Store) CompleteBook(ctx context.Context, bookID int64) (catalog.Book, []catalog.ChapterStub, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT id, title, abbrev, chapter_count, library_slot, updated_at FROM books WHERE id = ?", bookID)
	book, err := scanBook(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Book{}, nil, services.Wrap(services.ErrNotFound, "shelf", "complete book",
				fmt.Sprintf("book %d", bookID), nil)
		}
		return catalog.Book{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, book_id, idx, name, privilege, vip, price FROM chapters WHERE book_id = ? ORDER BY idx", bookID)
	if err != nil {
		return catalog.Book{}, nil, fmt.Errorf("query chapters: %w", err)
	}
	defer rows.Close()

	var stubs []catalog.ChapterStub
	for rows.Next() {
		var stub catalog.ChapterStub
		if err := rows.Scan(&stub.ID, &stub.BookID, &stub.Index, &stub.Name, &stub.Privilege, &stub.VIP, &stub.Price); err != nil {
			return catalog.Book{}, nil, fmt.Errorf("scan chapter: %w", err)
		}
		stubs = append(stubs, stub)
	}
	return book, stubs, rows.Err()
}

// InsertBook persists a book snapshot with its chapter stubs, replacing any
// previous snapshot of the same book wholesale.
func (s *Store) InsertBook(ctx context.Context, book catalog.Book, stubs []catalog.ChapterStub) error {
	ctx = ensureContext(ctx)
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO books (id, title, abbrev, chapter_count, library_slot, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
           title = excluded.title,
           abbrev = excluded.abbrev,
           chapter_count = excluded.chapter_count,
           library_slot = excluded.library_slot,
           updated_at = excluded.updated_at`,
		book.ID, book.Title, book.Abbrev, book.ChapterCount, book.LibrarySlot, timestamp(book.UpdatedAt),
	); err != nil {
		return fmt.Errorf("upsert book %d: %w", book.ID, err)
	}

	for _, stub := range stubs {
		if err := s.upsertStub(ctx, stub); err != nil {
			return err
		}
	}
	return nil
}

// UpsertChapters records chapter stubs without touching their purchase state.
func (s *Store) UpsertChapters(ctx context.Context, stubs []catalog.ChapterStub) error {
	ctx = ensureContext(ctx)
	for _, stub := range stubs {
		if err := s.upsertStub(ctx, stub); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertStub(ctx context.Context, stub catalog.ChapterStub) error {
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO chapters (id, book_id, idx, name, privilege, vip, price)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
           idx = excluded.idx,
           name = excluded.name,
           privilege = excluded.privilege,
           vip = excluded.vip,
           price = excluded.price`,
		stub.ID, stub.BookID, stub.Index, stub.Name, stub.Privilege, stub.VIP, stub.Price,
	); err != nil {
		return fmt.Errorf("upsert chapter %d: %w", stub.ID, err)
	}
	return nil
}

// SaveChapter records a purchased chapter, body included.
func (s *Store) SaveChapter(ctx context.Context, ch catalog.Chapter) error {
	ctx = ensureContext(ctx)
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO chapters (id, book_id, idx, name, privilege, vip, price, content, paid_price, purchased_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
           content = excluded.content,
           paid_price = excluded.paid_price,
           purchased_at = excluded.purchased_at`,
		ch.ID, ch.BookID, ch.Index, ch.Name, ch.Privilege, ch.VIP, ch.Price,
		ch.Content, ch.PaidPrice, timestamp(ch.PurchasedAt),
	); err != nil {
		return fmt.Errorf("save chapter %d: %w", ch.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (catalog.Book, error) {
	var book catalog.Book
	var updated string
	if err := row.Scan(&book.ID, &book.Title, &book.Abbrev, &book.ChapterCount, &book.LibrarySlot, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Book{}, err
		}
		return catalog.Book{}, fmt.Errorf("scan book: %w", err)
	}
	book.UpdatedAt = parseTimestamp(updated)
	return book, nil
}
