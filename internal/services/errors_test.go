package services

import (
	"errors"
	"testing"
)

func TestWrapPreservesMarker(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(ErrTransient, "watcher", "fetch library", "slot 3", base)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected marker to survive wrapping: %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected cause to survive wrapping: %v", err)
	}
}

func TestWrapNilMarkerDefaultsTransient(t *testing.T) {
	err := Wrap(nil, "buyer", "purchase", "", nil)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient default, got %v", err)
	}
}

func TestIsBenign(t *testing.T) {
	err := Wrap(ErrAlreadyOwned, "buyer", "purchase", "chapter 7", nil)
	if !IsBenign(err) {
		t.Fatalf("already-owned should be benign: %v", err)
	}
	if IsBenign(Wrap(ErrTransient, "buyer", "purchase", "", nil)) {
		t.Fatal("transient errors are not benign")
	}
}

func TestIsFatalToCycle(t *testing.T) {
	if !IsFatalToCycle(Wrap(ErrExhausted, "buyer", "acquire account", "", nil)) {
		t.Fatal("exhaustion should be fatal to the cycle")
	}
	if IsFatalToCycle(Wrap(ErrNotFound, "shelf", "load book", "", nil)) {
		t.Fatal("not-found should not be fatal to the cycle")
	}
}
