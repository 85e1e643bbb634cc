package sourcesite

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"inkwire/internal/catalog"
	"inkwire/internal/config"
	"inkwire/internal/services"
)

func testClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.Default()
	cfg.Source.BaseURL = srv.URL
	cfg.Source.FetchRetries = 1
	return NewHTTPClient(&cfg)
}

func TestFetchLibrary(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/library" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header %q", got)
		}
		_ = json.NewEncoder(w).Encode(libraryResponse{
			Items:     []bookPayload{{BookID: 7, Title: "seas", ChapterCount: 12, UpdatedAt: 1700000000}},
			PageCount: 3,
		})
	}))

	books, pages, err := client.FetchLibrary(context.Background(),
		catalog.Account{ID: 1, Token: "tok", LibrarySlot: 4}, catalog.Proxy{})
	if err != nil {
		t.Fatalf("fetch library: %v", err)
	}
	if pages != 3 || len(books) != 1 {
		t.Fatalf("unexpected result: %d pages, %+v", pages, books)
	}
	if books[0].ID != 7 || books[0].LibrarySlot != 4 {
		t.Fatalf("book not mapped: %+v", books[0])
	}
}

func TestFetchLibraryRejectsUnusableProxy(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server through a broken proxy")
	}))

	_, _, err := client.FetchLibrary(context.Background(),
		catalog.Account{ID: 1, Token: "tok"}, catalog.Proxy{ID: 1, Address: "bad proxy"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unparsable proxy, got %v", err)
	}
}

func TestBuyChapterCodes(t *testing.T) {
	var code int
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req buyRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(buyResponse{
			Code:    code,
			Chapter: chapterPayload{ChapterID: req.ChapterID, Index: 2, Content: "text", PaidPrice: 5},
		})
	}))
	session, err := client.OpenSession(catalog.Account{ID: 1, Token: "tok"}, catalog.Proxy{})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer session.Close()

	code = codeOK
	ch, err := session.BuyChapter(context.Background(), 7, 71)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if ch.ID != 71 || ch.BookID != 7 || ch.Content != "text" || ch.PurchasedAt.IsZero() {
		t.Fatalf("chapter not mapped: %+v", ch)
	}

	code = codeAlreadyBought
	if _, err := session.BuyChapter(context.Background(), 7, 71); !errors.Is(err, services.ErrAlreadyOwned) {
		t.Fatalf("expected already-owned, got %v", err)
	}

	code = 9
	if _, err := session.BuyChapter(context.Background(), 7, 71); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient for unknown code, got %v", err)
	}
}

func TestRemoveFromLibraryPicksEndpoint(t *testing.T) {
	var single, batch int
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete:
			single++
		case r.URL.Path == "/library/remove":
			var req removeRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if len(req.BookIDs) != 2 {
				t.Errorf("unexpected batch size %d", len(req.BookIDs))
			}
			batch++
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	acct := catalog.Account{ID: 1, Token: "tok"}
	ctx := context.Background()

	if err := client.RemoveFromLibrary(ctx, acct, catalog.Proxy{}, []catalog.Book{{ID: 1}}); err != nil {
		t.Fatalf("single removal: %v", err)
	}
	if err := client.RemoveFromLibrary(ctx, acct, catalog.Proxy{}, []catalog.Book{{ID: 1}, {ID: 2}}); err != nil {
		t.Fatalf("batch removal: %v", err)
	}
	if err := client.RemoveFromLibrary(ctx, acct, catalog.Proxy{}, nil); err != nil {
		t.Fatalf("empty removal: %v", err)
	}
	if single != 1 || batch != 1 {
		t.Fatalf("endpoint selection wrong: single=%d batch=%d", single, batch)
	}
}

func TestValidateAccount(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer good" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	ctx := context.Background()

	if !client.ValidateAccount(ctx, catalog.Account{Token: "good"}) {
		t.Fatal("valid account rejected")
	}
	if client.ValidateAccount(ctx, catalog.Account{Token: "bad"}) {
		t.Fatal("invalid account accepted")
	}
	if client.ValidateAccount(ctx, catalog.Account{}) {
		t.Fatal("tokenless account accepted")
	}
}
