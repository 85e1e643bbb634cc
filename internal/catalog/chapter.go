package catalog

import "time"

// ChapterStub is the purchasable unit as listed by the source site, before
// any content has been bought.
type ChapterStub struct {
	ID        int64
	BookID    int64
	Index     int
	Name      string
	Privilege bool
	VIP       bool
	Price     int
}

// Chapter is a stub plus the purchased content.
type Chapter struct {
	ChapterStub
	Content     string
	PaidPrice   int
	PurchasedAt time.Time
}

// Account is a source-site credential. LibrarySlot >= 0 pins the account to a
// watcher partition; purchasing accounts carry -1 and spend FastPass currency.
type Account struct {
	ID          int64
	Name        string
	Token       string
	FastPass    int
	Privileged  bool
	LibrarySlot int
}

// Valid reports whether the account carries enough to attempt remote calls.
func (a Account) Valid() bool {
	return a.Token != ""
}

// Proxy is an outbound HTTP proxy endpoint for purchase sessions.
type Proxy struct {
	ID      int64
	Address string
}
