package sourcesite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go"

	"inkwire/internal/catalog"
	"inkwire/internal/config"
	"inkwire/internal/services"
)

const userAgent = "Inkwire/0.1.0"

// HTTPClient implements Client against the source-site JSON API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	retries uint
	timeout time.Duration
}

// NewHTTPClient constructs the shared (non-session) API client.
func NewHTTPClient(cfg *config.Config) *HTTPClient {
	timeout := time.Duration(cfg.Source.RequestTimeout) * time.Second
	return &HTTPClient{
		baseURL: cfg.Source.BaseURL,
		client:  &http.Client{Timeout: timeout},
		retries: uint(cfg.Source.FetchRetries),
		timeout: timeout,
	}
}

func (c *HTTPClient) FetchLibrary(ctx context.Context, account catalog.Account, proxy catalog.Proxy) ([]catalog.Book, int, error) {
	client, err := proxiedClient(proxy, c.timeout)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrValidation, "sourcesite", "fetch library",
			fmt.Sprintf("proxy %q", proxy.Address), err)
	}
	defer client.CloseIdleConnections()

	var resp libraryResponse
	err = c.getJSON(ctx, client, account.Token, "/library", &resp)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrTransient, "sourcesite", "fetch library",
			fmt.Sprintf("account %d", account.ID), err)
	}
	books := make([]catalog.Book, 0, len(resp.Items))
	for _, item := range resp.Items {
		books = append(books, item.toBook(account.LibrarySlot))
	}
	return books, resp.PageCount, nil
}

func (c *HTTPClient) FetchBook(ctx context.Context, bookID int64) (catalog.Book, []catalog.ChapterStub, error) {
	var resp bookResponse
	err := c.getJSON(ctx, c.client, "", fmt.Sprintf("/book/%d", bookID), &resp)
	if err != nil {
		return catalog.Book{}, nil, services.Wrap(services.ErrTransient, "sourcesite", "fetch book",
			fmt.Sprintf("book %d", bookID), err)
	}
	stubs := make([]catalog.ChapterStub, 0, len(resp.Chapters))
	for _, ch := range resp.Chapters {
		stub := ch.toStub()
		if stub.BookID == 0 {
			stub.BookID = bookID
		}
		stubs = append(stubs, stub)
	}
	return resp.Book.toBook(0), stubs, nil
}

func (c *HTTPClient) ValidateAccount(ctx context.Context, account catalog.Account) bool {
	if !account.Valid() {
		return false
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/account/profile", account.Token, nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer drainBody(resp)
	return resp.StatusCode == http.StatusOK
}

func (c *HTTPClient) ValidateProxy(ctx context.Context, proxy catalog.Proxy) bool {
	client, err := proxiedClient(proxy, c.timeout)
	if err != nil {
		return false
	}
	defer client.CloseIdleConnections()
	req, err := c.newRequest(ctx, http.MethodGet, "/ping", "", nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer drainBody(resp)
	return resp.StatusCode == http.StatusOK
}

func (c *HTTPClient) RemoveFromLibrary(ctx context.Context, account catalog.Account, proxy catalog.Proxy, books []catalog.Book) error {
	if len(books) == 0 {
		return nil
	}
	client, err := proxiedClient(proxy, c.timeout)
	if err != nil {
		return services.Wrap(services.ErrValidation, "sourcesite", "library removal",
			fmt.Sprintf("proxy %q", proxy.Address), err)
	}
	defer client.CloseIdleConnections()

	if len(books) == 1 {
		req, err := c.newRequest(ctx, http.MethodDelete, fmt.Sprintf("/library/%d", books[0].ID), account.Token, nil)
		if err != nil {
			return err
		}
		return c.expectOK(client, req)
	}

	ids := make([]int64, 0, len(books))
	for _, book := range books {
		ids = append(ids, book.ID)
	}
	body, err := json.Marshal(removeRequest{BookIDs: ids})
	if err != nil {
		return fmt.Errorf("marshal removal: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/library/remove", account.Token, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.expectOK(client, req)
}

func (c *HTTPClient) OpenSession(account catalog.Account, proxy catalog.Proxy) (Session, error) {
	client, err := proxiedClient(proxy, c.timeout)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "sourcesite", "open session",
			fmt.Sprintf("proxy %q", proxy.Address), err)
	}
	return &httpSession{parent: c, account: account, client: client}, nil
}

// httpSession owns one proxied HTTP client for the lifetime of a buyer pool.
type httpSession struct {
	parent  *HTTPClient
	account catalog.Account
	client  *http.Client
}

func (s *httpSession) Account() catalog.Account { return s.account }

func (s *httpSession) BuyChapter(ctx context.Context, bookID, chapterID int64) (catalog.Chapter, error) {
	body, err := json.Marshal(buyRequest{BookID: bookID, ChapterID: chapterID})
	if err != nil {
		return catalog.Chapter{}, fmt.Errorf("marshal buy request: %w", err)
	}
	req, err := s.parent.newRequest(ctx, http.MethodPost, "/buy", s.account.Token, bytes.NewReader(body))
	if err != nil {
		return catalog.Chapter{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return catalog.Chapter{}, services.Wrap(services.ErrTransient, "sourcesite", "buy chapter",
			fmt.Sprintf("chapter %d", chapterID), err)
	}
	defer drainBody(resp)

	var decoded buyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return catalog.Chapter{}, services.Wrap(services.ErrTransient, "sourcesite", "buy chapter",
			"undecodable response", err)
	}
	switch decoded.Code {
	case codeOK:
		ch := decoded.Chapter.toChapter(time.Now().UTC())
		if ch.BookID == 0 {
			ch.BookID = bookID
		}
		return ch, nil
	case codeAlreadyBought:
		return catalog.Chapter{}, services.Wrap(services.ErrAlreadyOwned, "sourcesite", "buy chapter",
			fmt.Sprintf("chapter %d", chapterID), nil)
	default:
		return catalog.Chapter{}, services.Wrap(services.ErrTransient, "sourcesite", "buy chapter",
			fmt.Sprintf("remote code %d: %s", decoded.Code, decoded.Message), nil)
	}
}

func (s *httpSession) FetchOwnedChapter(ctx context.Context, bookID, chapterID int64) (catalog.Chapter, error) {
	var decoded chapterPayload
	err := s.parent.getJSON(ctx, s.client, s.account.Token,
		fmt.Sprintf("/book/%d/chapter/%d", bookID, chapterID), &decoded)
	if err != nil {
		return catalog.Chapter{}, services.Wrap(services.ErrTransient, "sourcesite", "fetch owned chapter",
			fmt.Sprintf("chapter %d", chapterID), err)
	}
	ch := decoded.toChapter(time.Now().UTC())
	if ch.BookID == 0 {
		ch.BookID = bookID
	}
	return ch, nil
}

func (s *httpSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// getJSON fetches and decodes with the bounded retry policy. Decode failures
// are unrecoverable: the payload will not improve on retry.
func (c *HTTPClient) getJSON(ctx context.Context, client *http.Client, token, path string, out any) error {
	return retry.Do(func() error {
		req, err := c.newRequest(ctx, http.MethodGet, path, token, nil)
		if err != nil {
			return retry.Unrecoverable(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer drainBody(resp)
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d for %s", resp.StatusCode, path)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.Unrecoverable(fmt.Errorf("decode %s: %w", path, err))
		}
		return nil
	},
		retry.Attempts(c.retries),
		retry.Delay(time.Second),
		retry.MaxJitter(time.Second),
		retry.LastErrorOnly(true),
	)
}

func (c *HTTPClient) expectOK(client *http.Client, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "sourcesite", "library removal", "", err)
	}
	defer drainBody(resp)
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrTransient, "sourcesite", "library removal",
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
	return nil
}

func proxiedClient(proxy catalog.Proxy, timeout time.Duration) (*http.Client, error) {
	if proxy.Address == "" {
		return &http.Client{Timeout: timeout}, nil
	}
	proxyURL, err := url.Parse("http://" + proxy.Address)
	if err != nil {
		return nil, fmt.Errorf("parse proxy address: %w", err)
	}
	transport := &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

func drainBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
