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
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

// The reachability and readiness waits in this file back three paths:
// the post-start dashboard note, deploy readiness polling, and the web
// mode's gateway wait. All of them are read-only probes layered after
// the one delegated call, never retries of it.

// ErrWaitTimeout indicates the probe never reported ready in time.
var ErrWaitTimeout = errors.New("timed out waiting for readiness")

// WaitOptions configures the exponential backoff poll loop.
type WaitOptions struct {
	// Timeout bounds the whole wait. Zero means DefaultWaitOptions().
	Timeout time.Duration

	// InitialInterval is the first poll delay.
	InitialInterval time.Duration

	// MaxInterval caps the backoff growth.
	MaxInterval time.Duration

	// Multiplier grows the interval after each poll.
	Multiplier float64

	// Jitter randomizes each interval by +/- this fraction, so several
	// CLIs polling the same dashboard don't sync up.
	Jitter float64
}

// DefaultWaitOptions returns the backoff used by all three wait paths.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{
		Timeout:         120 * time.Second,
		InitialInterval: 1 * time.Second,
		MaxInterval:     8 * time.Second,
		Multiplier:      2.0,
		Jitter:          0.1,
	}
}

// CheckFunc is one readiness probe.
//
// done=true ends the wait successfully. A non-nil error ends the wait
// as a terminal failure (the probed system reported an unrecoverable
// state, not mere unreadiness). detail is surfaced to the user either way.
type CheckFunc func(ctx context.Context) (done bool, detail string, err error)

// waitFor polls check with exponential backoff until it reports done,
// fails terminally, or the timeout elapses.
func waitFor(ctx context.Context, opts WaitOptions, check CheckFunc) (string, error) {
	if opts.Timeout == 0 {
		opts = DefaultWaitOptions()
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	interval := opts.InitialInterval
	var lastDetail string

	for {
		done, detail, err := check(ctx)
		if detail != "" {
			lastDetail = detail
		}
		if err != nil {
			return lastDetail, err
		}
		if done {
			return lastDetail, nil
		}

		if err := sleepWithContext(ctx, applyJitter(interval, opts.Jitter)); err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				if lastDetail != "" {
					return lastDetail, fmt.Errorf("%w: last state %q", ErrWaitTimeout, lastDetail)
				}
				return lastDetail, ErrWaitTimeout
			}
			return lastDetail, ctx.Err()
		}
		interval = nextInterval(interval, opts.MaxInterval, opts.Multiplier)
	}
}

// httpReadyCheck probes a URL; any 2xx response counts as ready.
// Connection errors are unreadiness, not failure, since the service may
// simply not be listening yet.
func httpReadyCheck(client *http.Client, url string) CheckFunc {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return func(ctx context.Context) (bool, string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false, "", err
		}
		resp, err := client.Do(req)
		if err != nil {
			return false, "unreachable", nil
		}
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return true, resp.Status, nil
		}
		return false, resp.Status, nil
	}
}

// applyJitter randomizes interval by +/- jitter fraction.
func applyJitter(interval time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return interval
	}
	delta := (rand.Float64()*2 - 1) * jitter * float64(interval)
	return time.Duration(float64(interval) + delta)
}

// nextInterval grows the backoff, capped at max.
func nextInterval(current, max time.Duration, multiplier float64) time.Duration {
	if multiplier <= 1 {
		return current
	}
	next := time.Duration(float64(current) * multiplier)
	if next > max {
		return max
	}
	return next
}

// sleepWithContext sleeps for d or until ctx is done.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
