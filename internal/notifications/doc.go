// Package notifications sends operator push notifications through ntfy.
// An unconfigured topic yields a no-op notifier so callers never branch.
package notifications
