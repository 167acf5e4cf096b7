// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package dispatcher

import (
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/momentics/gcdispatch/api"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// startDispatcher builds and starts a dispatcher, shutting it down when the
// test ends.
func startDispatcher(t *testing.T, opts Options) *Dispatcher {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	d, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.StartUpThreads(); err != nil {
		t.Fatalf("StartUpThreads: %v", err)
	}
	t.Cleanup(d.ShutDownThreads)
	return d
}

// within fails the test if fn does not return in time.
func within(t *testing.T, limit time.Duration, what string, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(limit):
		t.Fatalf("Timeout: %s", what)
	}
}

// expectFatal runs fn and checks it raised a protocol violation caused by want.
func expectFatal(t *testing.T, want error, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatalf("expected panic wrapping %v", want)
		}
		err, ok := r.(error)
		if !ok {
			t.Fatalf("panic value %v is not an error", r)
		}
		if !errors.Is(err, api.ErrProtocolViolation) {
			t.Errorf("panic %v does not wrap ErrProtocolViolation", err)
		}
		if !errors.Is(err, want) {
			t.Errorf("panic %v does not wrap %v", err, want)
		}
		if api.CodeOf(err) != api.ErrCodeIllegalState {
			t.Errorf("code = %v, want %v", api.CodeOf(err), api.ErrCodeIllegalState)
		}
	}()
	fn()
}
