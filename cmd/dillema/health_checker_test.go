// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// fastWait keeps the backoff tight so the loop iterates quickly in tests.
func fastWait(timeout time.Duration) WaitOptions {
	return WaitOptions{
		Timeout:         timeout,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func TestWaitFor_DoneOnFirstCheck(t *testing.T) {
	calls := 0
	detail, err := waitFor(context.Background(), fastWait(time.Second),
		func(ctx context.Context) (bool, string, error) {
			calls++
			return true, "ready", nil
		})
	if err != nil {
		t.Fatalf("waitFor failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("check ran %d times, want 1", calls)
	}
	if detail != "ready" {
		t.Errorf("detail = %q, want ready", detail)
	}
}

func TestWaitFor_RetriesUntilDone(t *testing.T) {
	calls := 0
	_, err := waitFor(context.Background(), fastWait(time.Second),
		func(ctx context.Context) (bool, string, error) {
			calls++
			return calls >= 3, "warming up", nil
		})
	if err != nil {
		t.Fatalf("waitFor failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("check ran %d times, want 3", calls)
	}
}

func TestWaitFor_TerminalErrorStopsImmediately(t *testing.T) {
	boom := errors.New("deployment failed")
	calls := 0
	detail, err := waitFor(context.Background(), fastWait(time.Second),
		func(ctx context.Context) (bool, string, error) {
			calls++
			return false, "DEPLOY_FAILED", boom
		})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the terminal error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("check ran %d times after a terminal error, want 1", calls)
	}
	if detail != "DEPLOY_FAILED" {
		t.Errorf("detail = %q, want the last reported state", detail)
	}
}

func TestWaitFor_TimeoutCarriesLastState(t *testing.T) {
	detail, err := waitFor(context.Background(), fastWait(30*time.Millisecond),
		func(ctx context.Context) (bool, string, error) {
			return false, "DEPLOYING", nil
		})
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected ErrWaitTimeout, got %v", err)
	}
	if detail != "DEPLOYING" {
		t.Errorf("detail = %q, want the last state before timeout", detail)
	}
}

func TestWaitFor_ParentCancellationIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := waitFor(ctx, fastWait(time.Second),
		func(ctx context.Context) (bool, string, error) {
			return false, "", nil
		})
	if errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("cancellation reported as timeout: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestHTTPReadyCheck_StatusHandling(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusServiceUnavailable)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	check := httpReadyCheck(srv.Client(), srv.URL)

	done, _, err := check(context.Background())
	if err != nil || done {
		t.Fatalf("503 should report not ready without error, got done=%v err=%v", done, err)
	}

	status.Store(http.StatusOK)
	done, _, err = check(context.Background())
	if err != nil || !done {
		t.Fatalf("200 should report ready, got done=%v err=%v", done, err)
	}
}

func TestHTTPReadyCheck_ConnectionRefusedIsRetryable(t *testing.T) {
	// A closed server guarantees nothing listens on the port.
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	done, detail, err := httpReadyCheck(nil, url)(context.Background())
	if err != nil {
		t.Fatalf("connection error must be unreadiness, not failure: %v", err)
	}
	if done {
		t.Error("connection error reported ready")
	}
	if detail != "unreachable" {
		t.Errorf("detail = %q, want unreachable", detail)
	}
}

func TestNextInterval_GrowsAndCaps(t *testing.T) {
	got := nextInterval(time.Second, 8*time.Second, 2.0)
	if got != 2*time.Second {
		t.Errorf("nextInterval = %v, want 2s", got)
	}
	got = nextInterval(6*time.Second, 8*time.Second, 2.0)
	if got != 8*time.Second {
		t.Errorf("nextInterval = %v, want the 8s cap", got)
	}
}

func TestApplyJitter_StaysWithinBounds(t *testing.T) {
	base := time.Second
	for i := 0; i < 100; i++ {
		got := applyJitter(base, 0.1)
		if got < 900*time.Millisecond || got > 1100*time.Millisecond {
			t.Fatalf("jittered interval %v outside +/- 10%% of %v", got, base)
		}
	}
	if applyJitter(base, 0) != base {
		t.Error("zero jitter must leave the interval unchanged")
	}
}
