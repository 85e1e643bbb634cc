// Package buyer purchases discovered chapters. Work moves through an
// id-unique tri-state queue into per-account pools; each pool owns one
// purchase session, spends the account's fast-pass currency, and retires by
// returning unfinished work to the queue and releasing the account.
package buyer
