package shelf

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"inkwire/internal/catalog"
	"inkwire/internal/services"
)

// Account lease states.
const (
	stateAvailable = "available"
	stateLeased    = "leased"
	stateExpired   = "expired"
)

// AddAccount registers a new account in the credential inventory.
func (s *Store) AddAccount(ctx context.Context, account catalog.Account) (catalog.Account, error) {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx,
		`INSERT INTO accounts (name, token, fast_pass, privileged, library_slot, state, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		account.Name, account.Token, account.FastPass, account.Privileged, account.LibrarySlot,
		stateAvailable, timestamp(time.Now()),
	)
	if err != nil {
		return catalog.Account{}, fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return catalog.Account{}, fmt.Errorf("last insert id: %w", err)
	}
	account.ID = id
	return account, nil
}

// RetrieveBuyerAccount leases the next available purchasing account holding
// fast-pass currency. Exhaustion is a distinguished error.
func (s *Store) RetrieveBuyerAccount(ctx context.Context) (catalog.Account, error) {
	return s.leaseAccount(ctx,
		`SELECT id, name, token, fast_pass, privileged, library_slot FROM accounts
         WHERE state = ? AND privileged = 0 AND fast_pass > 0 AND library_slot < 0
         ORDER BY fast_pass DESC LIMIT 1`,
		"buyer account")
}

// RetrievePrivilegedAccount leases an available privileged-tier account.
func (s *Store) RetrievePrivilegedAccount(ctx context.Context) (catalog.Account, error) {
	return s.leaseAccount(ctx,
		`SELECT id, name, token, fast_pass, privileged, library_slot FROM accounts
         WHERE state = ? AND privileged = 1 AND fast_pass > 0
         ORDER BY fast_pass DESC LIMIT 1`,
		"privileged account")
}

// RetrieveLibraryAccount leases an available account for a library slot.
func (s *Store) RetrieveLibraryAccount(ctx context.Context, slot int) (catalog.Account, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, token, fast_pass, privileged, library_slot FROM accounts
         WHERE state = ? AND library_slot = ?
         ORDER BY id LIMIT 1`, stateAvailable, slot)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Account{}, services.Wrap(services.ErrExhausted, "shelf", "retrieve library account",
				fmt.Sprintf("slot %d", slot), nil)
		}
		return catalog.Account{}, err
	}
	if err := s.setAccountState(ctx, account.ID, stateLeased); err != nil {
		return catalog.Account{}, err
	}
	return account, nil
}

func (s *Store) leaseAccount(ctx context.Context, query, kind string) (catalog.Account, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, query, stateAvailable)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Account{}, services.Wrap(services.ErrExhausted, "shelf", "retrieve account", kind, nil)
		}
		return catalog.Account{}, err
	}
	if err := s.setAccountState(ctx, account.ID, stateLeased); err != nil {
		return catalog.Account{}, err
	}
	return account, nil
}

// ExpireAccount marks an account invalid; it will not be leased again.
func (s *Store) ExpireAccount(ctx context.Context, account catalog.Account) error {
	return s.setAccountState(ensureContext(ctx), account.ID, stateExpired)
}

// ReleaseAccount returns a leased account to the available pool.
func (s *Store) ReleaseAccount(ctx context.Context, account catalog.Account) error {
	return s.setAccountState(ensureContext(ctx), account.ID, stateAvailable)
}

// UpdateFastPass refreshes the stored fast-pass balance for an account.
func (s *Store) UpdateFastPass(ctx context.Context, count int, account catalog.Account) error {
	ctx = ensureContext(ctx)
	if _, err := s.execWithRetry(ctx,
		"UPDATE accounts SET fast_pass = ?, updated_at = ? WHERE id = ?",
		count, timestamp(time.Now()), account.ID,
	); err != nil {
		return fmt.Errorf("update fast pass for account %d: %w", account.ID, err)
	}
	return nil
}

func (s *Store) setAccountState(ctx context.Context, id int64, state string) error {
	if _, err := s.execWithRetry(ctx,
		"UPDATE accounts SET state = ?, updated_at = ? WHERE id = ?",
		state, timestamp(time.Now()), id,
	); err != nil {
		return fmt.Errorf("set account %d state %s: %w", id, state, err)
	}
	return nil
}

// AddProxy registers a proxy.
func (s *Store) AddProxy(ctx context.Context, proxy catalog.Proxy) (catalog.Proxy, error) {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx,
		"INSERT INTO proxies (address, state, updated_at) VALUES (?, ?, ?)",
		proxy.Address, stateAvailable, timestamp(time.Now()),
	)
	if err != nil {
		return catalog.Proxy{}, fmt.Errorf("insert proxy: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return catalog.Proxy{}, fmt.Errorf("last insert id: %w", err)
	}
	proxy.ID = id
	return proxy, nil
}

// RetrieveProxy returns an available proxy, or a distinguished exhaustion
// error when none remain.
func (s *Store) RetrieveProxy(ctx context.Context) (catalog.Proxy, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT id, address FROM proxies WHERE state = ? ORDER BY id LIMIT 1", stateAvailable)
	var proxy catalog.Proxy
	if err := row.Scan(&proxy.ID, &proxy.Address); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Proxy{}, services.Wrap(services.ErrExhausted, "shelf", "retrieve proxy", "", nil)
		}
		return catalog.Proxy{}, fmt.Errorf("scan proxy: %w", err)
	}
	return proxy, nil
}

// ExpireProxy marks a proxy unusable.
func (s *Store) ExpireProxy(ctx context.Context, proxy catalog.Proxy) error {
	ctx = ensureContext(ctx)
	if _, err := s.execWithRetry(ctx,
		"UPDATE proxies SET state = ?, updated_at = ? WHERE id = ?",
		stateExpired, timestamp(time.Now()), proxy.ID,
	); err != nil {
		return fmt.Errorf("expire proxy %d: %w", proxy.ID, err)
	}
	return nil
}

func scanAccount(row rowScanner) (catalog.Account, error) {
	var account catalog.Account
	err := row.Scan(&account.ID, &account.Name, &account.Token, &account.FastPass,
		&account.Privileged, &account.LibrarySlot)
	if err != nil {
		return catalog.Account{}, err
	}
	return account, nil
}
