package sourcesite

import (
	"context"

	"inkwire/internal/catalog"
)

// Client is the boundary the pipeline stages consume for all source-site
// operations except purchases, which run through a per-account Session.
type Client interface {
	// FetchLibrary returns the live library listing for an account along
	// with the remote page count. The request is routed through the given
	// proxy; a zero proxy means a direct connection.
	FetchLibrary(ctx context.Context, account catalog.Account, proxy catalog.Proxy) ([]catalog.Book, int, error)
	// FetchBook returns the full remote snapshot and chapter list.
	FetchBook(ctx context.Context, bookID int64) (catalog.Book, []catalog.ChapterStub, error)
	// ValidateAccount reports whether the account is still accepted remotely.
	ValidateAccount(ctx context.Context, account catalog.Account) bool
	// ValidateProxy reports whether the proxy is usable.
	ValidateProxy(ctx context.Context, proxy catalog.Proxy) bool
	// RemoveFromLibrary removes stray entries from an account's remote
	// library through the given proxy; one item uses the single-removal
	// call, several the batch one.
	RemoveFromLibrary(ctx context.Context, account catalog.Account, proxy catalog.Proxy, books []catalog.Book) error
	// OpenSession opens a purchase session owned by exactly one buyer pool.
	OpenSession(account catalog.Account, proxy catalog.Proxy) (Session, error)
}

// Session is a purchase channel bound to one account. It is owned by a
// single buyer pool and closed when the pool retires.
type Session interface {
	Account() catalog.Account
	// BuyChapter purchases one chapter. The remote already-bought rejection
	// surfaces as services.ErrAlreadyOwned.
	BuyChapter(ctx context.Context, bookID, chapterID int64) (catalog.Chapter, error)
	// FetchOwnedChapter fetches the body of a chapter this account already
	// owns, used to complete a duplicate purchase after a restart.
	FetchOwnedChapter(ctx context.Context, bookID, chapterID int64) (catalog.Chapter, error)
	Close() error
}
