package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}
	// A canceled context means the user interrupted a foreground run; the
	// shutdown already said everything worth saying.
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "inkwire: %v\n", err)
	}
	os.Exit(1)
}
