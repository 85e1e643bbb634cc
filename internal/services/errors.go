package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks startup-time misconfiguration; fatal.
	ErrConfiguration = errors.New("configuration error")
	// ErrExhausted marks resource exhaustion: no valid account or proxy
	// remained after the bounded retry policy.
	ErrExhausted = errors.New("resource exhausted")
	// ErrTransient marks a retryable fetch failure (timeout, malformed
	// response); the owning service retries per its own policy.
	ErrTransient = errors.New("transient failure")
	// ErrNotFound marks a missing remote or persisted entity.
	ErrNotFound = errors.New("not found")
	// ErrTimeout marks a bounded wait that did not settle in time.
	ErrTimeout = errors.New("timeout")
	// ErrValidation marks input the remote side rejected as malformed.
	ErrValidation = errors.New("validation error")
	// ErrAlreadyOwned marks the remote "already bought" rejection; benign.
	ErrAlreadyOwned = errors.New("chapter already owned")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsBenign reports whether an error represents a remote rejection the
// pipeline tolerates rather than surfaces.
func IsBenign(err error) bool {
	return errors.Is(err, ErrAlreadyOwned)
}

// IsFatalToCycle reports whether an error should end the requesting cycle's
// work item instead of being retried.
func IsFatalToCycle(err error) bool {
	return errors.Is(err, ErrExhausted) || errors.Is(err, ErrConfiguration)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
