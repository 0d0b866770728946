// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptedDoer serves canned status codes keyed by URL substring.
// A URL with no match errors as unreachable.
type scriptedDoer struct {
	mu       sync.Mutex
	statuses map[string]int
	requests int
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests++
	for substr, code := range d.statuses {
		if strings.Contains(req.URL.String(), substr) {
			return &http.Response{
				StatusCode: code,
				Body:       io.NopCloser(strings.NewReader("")),
			}, nil
		}
	}
	return nil, &connRefusedError{}
}

type connRefusedError struct{}

func (*connRefusedError) Error() string { return "connection refused" }

func (d *scriptedDoer) set(substr string, code int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statuses[substr] = code
}

// newPollChecker builds a checker whose sleeps are counted, not slept.
func newPollChecker(doer HTTPDoer) (*DefaultHealthChecker, *[]time.Duration) {
	c := NewDefaultHealthChecker(doer, nil)
	sleeps := &[]time.Duration{}
	c.sleep = func(ctx context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return c, sleeps
}

func twoServices() []ServiceDefinition {
	return []ServiceDefinition{
		{ID: GenerateID(), Name: "frontend", URL: "http://localhost:3000"},
		{ID: GenerateID(), Name: "backend", URL: "http://localhost:8000/api/health"},
	}
}

func TestCheckServiceStates(t *testing.T) {
	doer := &scriptedDoer{statuses: map[string]int{
		":3000": 200,
		":8000": 503,
	}}
	c := NewDefaultHealthChecker(doer, nil)

	healthy := c.CheckService(context.Background(), ServiceDefinition{Name: "frontend", URL: "http://localhost:3000"})
	if healthy.State != HealthStateHealthy {
		t.Errorf("frontend state = %s, want healthy", healthy.State)
	}
	if healthy.HTTPStatus != 200 {
		t.Errorf("HTTPStatus = %d", healthy.HTTPStatus)
	}

	unhealthy := c.CheckService(context.Background(), ServiceDefinition{Name: "backend", URL: "http://localhost:8000/api/health"})
	if unhealthy.State != HealthStateUnhealthy {
		t.Errorf("backend state = %s, want unhealthy", unhealthy.State)
	}

	unreachable := c.CheckService(context.Background(), ServiceDefinition{Name: "other", URL: "http://localhost:9999"})
	if unreachable.State != HealthStateUnreachable {
		t.Errorf("other state = %s, want unreachable", unreachable.State)
	}
	if unreachable.Message == "" {
		t.Error("unreachable probe has no message")
	}
}

func TestCheckAllPreservesOrder(t *testing.T) {
	doer := &scriptedDoer{statuses: map[string]int{":3000": 200, ":8000": 200}}
	c := NewDefaultHealthChecker(doer, nil)

	statuses := c.CheckAll(context.Background(), twoServices())
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Name != "frontend" || statuses[1].Name != "backend" {
		t.Errorf("order not preserved: %s, %s", statuses[0].Name, statuses[1].Name)
	}
}

// TestPollBoundedAttempts verifies a never-healthy service terminates
// after exactly MaxAttempts rounds with MaxAttempts-1 sleeps.
func TestPollBoundedAttempts(t *testing.T) {
	doer := &scriptedDoer{statuses: map[string]int{}}
	c, sleeps := newPollChecker(doer)

	opts := PollOptions{MaxAttempts: 3, Interval: 2 * time.Second, Policy: PolicyAll}
	results := c.Poll(context.Background(), twoServices(), opts)

	if results["frontend"] || results["backend"] {
		t.Error("expected all unhealthy")
	}
	if got := len(*sleeps); got != 2 {
		t.Errorf("slept %d times, want MaxAttempts-1 = 2", got)
	}
	var total time.Duration
	for _, d := range *sleeps {
		total += d
	}
	if total != 4*time.Second {
		t.Errorf("total sleep = %s, want 4s", total)
	}
}

// TestPollEarlyStopNoSleep verifies an immediately healthy stack
// returns after one round with zero sleeps.
func TestPollEarlyStopNoSleep(t *testing.T) {
	doer := &scriptedDoer{statuses: map[string]int{":3000": 200, ":8000": 200}}
	c, sleeps := newPollChecker(doer)

	opts := PollOptions{MaxAttempts: 10, Interval: time.Minute, Policy: PolicyAll}
	results := c.Poll(context.Background(), twoServices(), opts)

	if !results["frontend"] || !results["backend"] {
		t.Error("expected all healthy")
	}
	if len(*sleeps) != 0 {
		t.Errorf("slept %d times, want 0", len(*sleeps))
	}
}

// TestPollBecomesHealthy verifies polling stops the round a service
// comes up.
func TestPollBecomesHealthy(t *testing.T) {
	doer := &scriptedDoer{statuses: map[string]int{":3000": 200}}
	c, sleeps := newPollChecker(doer)

	// Backend comes up after the second sleep.
	origSleep := c.sleep
	c.sleep = func(ctx context.Context, d time.Duration) error {
		if len(*sleeps) == 1 {
			doer.set(":8000", 200)
		}
		return origSleep(ctx, d)
	}

	opts := PollOptions{MaxAttempts: 10, Interval: time.Second, Policy: PolicyAll}
	results := c.Poll(context.Background(), twoServices(), opts)

	if !results["backend"] {
		t.Error("backend should be healthy by round 3")
	}
	if len(*sleeps) != 2 {
		t.Errorf("slept %d times, want 2", len(*sleeps))
	}
}

// sequenceDoer answers per URL substring from a queue of status codes
// (0 means connection refused); the last entry repeats. Probes are
// counted per substring.
type sequenceDoer struct {
	mu     sync.Mutex
	seq    map[string][]int
	counts map[string]int
}

func (d *sequenceDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.counts == nil {
		d.counts = make(map[string]int)
	}
	for substr, codes := range d.seq {
		if strings.Contains(req.URL.String(), substr) {
			n := d.counts[substr]
			d.counts[substr] = n + 1
			if n >= len(codes) {
				n = len(codes) - 1
			}
			if codes[n] == 0 {
				return nil, &connRefusedError{}
			}
			return &http.Response{
				StatusCode: codes[n],
				Body:       io.NopCloser(strings.NewReader("")),
			}, nil
		}
	}
	return nil, &connRefusedError{}
}

// TestPollHealthyMarkSticks verifies a service that answers 200 once is
// marked healthy for good: later rounds skip it, so a later 500 from
// the same endpoint cannot revoke the mark.
func TestPollHealthyMarkSticks(t *testing.T) {
	doer := &sequenceDoer{seq: map[string][]int{
		":3000": {200, 500},
		":8000": {0, 0, 200},
	}}
	c, sleeps := newPollChecker(doer)

	opts := PollOptions{MaxAttempts: 5, Interval: time.Second, Policy: PolicyAll}
	results := c.Poll(context.Background(), twoServices(), opts)

	if !results["frontend"] {
		t.Error("frontend healthy mark was revoked")
	}
	if !results["backend"] {
		t.Error("backend should be healthy by round 3")
	}
	if got := doer.counts[":3000"]; got != 1 {
		t.Errorf("frontend probed %d times, want 1", got)
	}
	if got := doer.counts[":8000"]; got != 3 {
		t.Errorf("backend probed %d times, want 3", got)
	}
	if len(*sleeps) != 2 {
		t.Errorf("slept %d times, want 2", len(*sleeps))
	}
}

func TestPollPolicyAny(t *testing.T) {
	doer := &scriptedDoer{statuses: map[string]int{":3000": 200}}
	c, sleeps := newPollChecker(doer)

	opts := PollOptions{MaxAttempts: 5, Interval: time.Second, Policy: PolicyAny}
	results := c.Poll(context.Background(), twoServices(), opts)

	if !results["frontend"] {
		t.Error("frontend should be healthy")
	}
	if len(*sleeps) != 0 {
		t.Errorf("policy any should stop immediately, slept %d times", len(*sleeps))
	}
}

func TestPollCancelledContext(t *testing.T) {
	doer := &scriptedDoer{statuses: map[string]int{}}
	c := NewDefaultHealthChecker(doer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := PollOptions{MaxAttempts: 100, Interval: time.Hour, Policy: PolicyAll}
	done := make(chan map[string]bool, 1)
	go func() { done <- c.Poll(ctx, twoServices(), opts) }()

	select {
	case results := <-done:
		if len(results) != 2 {
			t.Errorf("expected results for both services, got %d", len(results))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Poll did not return after cancellation")
	}
}

func TestHealthyPolicyFolding(t *testing.T) {
	defs := []ServiceDefinition{
		{Name: "a"},
		{Name: "b"},
		{Name: "opt", Optional: true},
	}

	cases := []struct {
		name    string
		results map[string]bool
		policy  HealthPolicy
		want    bool
	}{
		{"all healthy", map[string]bool{"a": true, "b": true, "opt": true}, PolicyAll, true},
		{"optional down ignored", map[string]bool{"a": true, "b": true, "opt": false}, PolicyAll, true},
		{"required down", map[string]bool{"a": true, "b": false, "opt": true}, PolicyAll, false},
		{"any with one up", map[string]bool{"a": false, "b": true, "opt": false}, PolicyAny, true},
		{"any with none up", map[string]bool{"a": false, "b": false, "opt": false}, PolicyAny, false},
	}
	for _, tc := range cases {
		if got := Healthy(tc.results, defs, tc.policy); got != tc.want {
			t.Errorf("%s: Healthy = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestGenerateIDUnique(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if len(a) != 16 {
		t.Errorf("ID length = %d, want 16", len(a))
	}
	if a == b {
		t.Error("two IDs are identical")
	}
}
