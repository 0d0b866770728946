// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Interface Definition
// =============================================================================

// HealthChecker verifies service availability (binary up/down).
//
// # Description
//
// Probes HTTP health endpoints for startup gating and status display.
// Polling is strictly bounded: a fixed number of attempts at a fixed
// interval, with an early stop as soon as the readiness policy is
// satisfied and no sleep after the final attempt.
//
// # Limitations
//
//   - Binary health only (healthy/unhealthy); no degraded state
//   - Point-in-time; a service may change state right after a check
//
// # Assumptions
//
//   - Services are reachable on localhost
//   - A 2xx response means healthy
type HealthChecker interface {
	// CheckService performs a single probe without retries.
	CheckService(ctx context.Context, service ServiceDefinition) HealthStatus

	// CheckAll probes every service once, in parallel, preserving
	// input order in the result slice.
	CheckAll(ctx context.Context, services []ServiceDefinition) []HealthStatus

	// Poll probes repeatedly until the policy is satisfied or the
	// attempt budget runs out. Returns name to healthy for every
	// input service. A service marked healthy stays marked and is
	// not probed again; later rounds cover only the stragglers.
	// Cancellation stops the loop and returns the results so far.
	Poll(ctx context.Context, services []ServiceDefinition, opts PollOptions) map[string]bool
}

// HTTPDoer is the slice of http.Client the checker needs. Injected so
// tests probe fake services without sockets.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// =============================================================================
// Default Implementation
// =============================================================================

// DefaultHealthChecker implements HealthChecker over HTTP.
type DefaultHealthChecker struct {
	client HTTPDoer
	log    *slog.Logger

	// sleep is overridable so polling tests run without real waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDefaultHealthChecker creates a checker with the given client.
// A nil client gets a plain http.Client; per-probe timeouts come from
// the request context, not the client.
func NewDefaultHealthChecker(client HTTPDoer, log *slog.Logger) *DefaultHealthChecker {
	if client == nil {
		client = &http.Client{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &DefaultHealthChecker{
		client: client,
		log:    log,
		sleep:  sleepCtx,
	}
}

// CheckService performs a single probe without retries.
func (c *DefaultHealthChecker) CheckService(ctx context.Context, service ServiceDefinition) HealthStatus {
	status := HealthStatus{
		ID:   GenerateID(),
		Name: service.Name,
	}

	start := time.Now()
	defer func() {
		status.Latency = time.Since(start)
		status.LastChecked = time.Now()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, service.URL, nil)
	if err != nil {
		status.State = HealthStateUnreachable
		status.Message = fmt.Sprintf("bad health URL: %v", err)
		return status
	}

	resp, err := c.client.Do(req)
	if err != nil {
		status.State = HealthStateUnreachable
		status.Message = err.Error()
		return status
	}
	defer resp.Body.Close()

	status.HTTPStatus = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		status.State = HealthStateHealthy
	} else {
		status.State = HealthStateUnhealthy
		status.Message = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return status
}

// CheckAll probes every service once, in parallel.
func (c *DefaultHealthChecker) CheckAll(ctx context.Context, services []ServiceDefinition) []HealthStatus {
	results := make([]HealthStatus, len(services))

	g, gctx := errgroup.WithContext(ctx)
	for i, svc := range services {
		g.Go(func() error {
			probeCtx := gctx
			if svc.Timeout > 0 {
				var cancel context.CancelFunc
				probeCtx, cancel = context.WithTimeout(gctx, svc.Timeout)
				defer cancel()
			}
			results[i] = c.CheckService(probeCtx, svc)
			return nil
		})
	}
	g.Wait()
	return results
}

// Poll probes repeatedly until ready or out of attempts.
//
// # Description
//
// Runs up to MaxAttempts rounds of CheckAll with a fixed Interval
// pause between rounds. Each round probes only the services not yet
// seen healthy; a healthy mark is terminal, so a flap after a good
// probe cannot revoke it. Stops early, without a trailing sleep, as
// soon as the policy is satisfied; the final attempt is likewise
// never followed by a sleep, so worst-case wall clock is
// (MaxAttempts-1)*Interval plus per-round request time.
func (c *DefaultHealthChecker) Poll(ctx context.Context, services []ServiceDefinition, opts PollOptions) map[string]bool {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	withTimeout := make([]ServiceDefinition, len(services))
	copy(withTimeout, services)
	for i := range withTimeout {
		if withTimeout[i].Timeout == 0 {
			withTimeout[i].Timeout = opts.RequestTimeout
		}
	}

	results := make(map[string]bool, len(services))
	for _, svc := range withTimeout {
		results[svc.Name] = false
	}

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		pending := make([]ServiceDefinition, 0, len(withTimeout))
		for _, svc := range withTimeout {
			if !results[svc.Name] {
				pending = append(pending, svc)
			}
		}

		statuses := c.CheckAll(ctx, pending)
		for _, st := range statuses {
			if st.State == HealthStateHealthy {
				results[st.Name] = true
			}
		}

		if Healthy(results, services, opts.Policy) {
			c.log.Debug("services ready", "attempt", attempt)
			return results
		}
		if attempt == opts.MaxAttempts {
			break
		}

		c.log.Debug("services not ready, waiting",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"interval", opts.Interval)
		if err := c.sleep(ctx, opts.Interval); err != nil {
			break
		}
	}
	return results
}

// sleepCtx pauses for d or until the context ends.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// =============================================================================
// Mock Implementation
// =============================================================================

// MockHealthChecker implements HealthChecker for testing.
type MockHealthChecker struct {
	CheckServiceFunc func(ctx context.Context, service ServiceDefinition) HealthStatus
	CheckAllFunc     func(ctx context.Context, services []ServiceDefinition) []HealthStatus
	PollFunc         func(ctx context.Context, services []ServiceDefinition, opts PollOptions) map[string]bool

	Calls []string
	mu    sync.Mutex
}

func (m *MockHealthChecker) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, method)
}

// GetCalls returns a copy of recorded calls.
func (m *MockHealthChecker) GetCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Calls))
	copy(out, m.Calls)
	return out
}

func (m *MockHealthChecker) CheckService(ctx context.Context, service ServiceDefinition) HealthStatus {
	m.record("CheckService")
	if m.CheckServiceFunc != nil {
		return m.CheckServiceFunc(ctx, service)
	}
	return HealthStatus{ID: GenerateID(), Name: service.Name, State: HealthStateHealthy}
}

func (m *MockHealthChecker) CheckAll(ctx context.Context, services []ServiceDefinition) []HealthStatus {
	m.record("CheckAll")
	if m.CheckAllFunc != nil {
		return m.CheckAllFunc(ctx, services)
	}
	out := make([]HealthStatus, 0, len(services))
	for _, s := range services {
		out = append(out, HealthStatus{ID: GenerateID(), Name: s.Name, State: HealthStateHealthy})
	}
	return out
}

func (m *MockHealthChecker) Poll(ctx context.Context, services []ServiceDefinition, opts PollOptions) map[string]bool {
	m.record("Poll")
	if m.PollFunc != nil {
		return m.PollFunc(ctx, services, opts)
	}
	out := make(map[string]bool, len(services))
	for _, s := range services {
		out[s.Name] = true
	}
	return out
}

// Compile-time interface compliance checks.
var (
	_ HealthChecker = (*DefaultHealthChecker)(nil)
	_ HealthChecker = (*MockHealthChecker)(nil)
)
