// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides Gin middleware for the gateway.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/dillema-ai/dillema/services/gateway/datatypes"
)

// staleAfter is how long an idle client keeps its token bucket before
// the janitor drops it.
const staleAfter = 10 * time.Minute

// clientLimiter pairs a token bucket with its last-seen time.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a per-client token bucket. Clients are keyed by
// IP; a chat burst up to the bucket size passes, sustained traffic is
// capped at the configured rate.
//
// # Thread Safety
//
// Safe for concurrent use.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int

	stopJanitor chan struct{}
	janitorOnce sync.Once
}

// NewRateLimiter creates a limiter allowing perMinute requests per
// client, with a burst of perMinute/6 (at least 1).
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	burst := perMinute / 6
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		clients:     make(map[string]*clientLimiter),
		limit:       rate.Limit(float64(perMinute) / 60.0),
		burst:       burst,
		stopJanitor: make(chan struct{}),
	}
}

// Middleware returns the Gin handler enforcing the limit. The first
// call starts the background janitor that evicts idle clients.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	rl.janitorOnce.Do(func() { go rl.janitor() })

	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, datatypes.ErrorResponse{
				Error: "rate limit exceeded, slow down",
			})
			return
		}
		c.Next()
	}
}

// Allow reports whether the client may proceed and consumes one token
// if so.
func (rl *RateLimiter) Allow(clientKey string) bool {
	rl.mu.Lock()
	cl, ok := rl.clients[clientKey]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[clientKey] = cl
	}
	cl.lastSeen = time.Now()
	rl.mu.Unlock()

	return cl.limiter.Allow()
}

// Stop halts the janitor goroutine.
func (rl *RateLimiter) Stop() {
	select {
	case <-rl.stopJanitor:
	default:
		close(rl.stopJanitor)
	}
}

func (rl *RateLimiter) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopJanitor:
			return
		case <-ticker.C:
			rl.evictStale()
		}
	}
}

func (rl *RateLimiter) evictStale() {
	cutoff := time.Now().Add(-staleAfter)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, cl := range rl.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}
