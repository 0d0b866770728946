// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/kortix-ai/suna-cli/cmd/suna/config"
)

// HealthState represents the binary health state of a service.
//
// States are mutually exclusive and represent a point-in-time
// snapshot; a service may change state immediately after a check.
type HealthState string

const (
	// HealthStateHealthy indicates the service responded with 2xx.
	HealthStateHealthy HealthState = "healthy"

	// HealthStateUnhealthy indicates the service responded outside 2xx.
	HealthStateUnhealthy HealthState = "unhealthy"

	// HealthStateUnreachable indicates the service could not be contacted.
	HealthStateUnreachable HealthState = "unreachable"
)

// ServiceDefinition describes one HTTP health check target.
//
// # Examples
//
//	def := ServiceDefinition{
//	    ID:   GenerateID(),
//	    Name: "backend",
//	    URL:  "http://localhost:8000/api/health",
//	}
type ServiceDefinition struct {
	// ID is a unique identifier for tracking and log correlation.
	ID string

	// Name is the human-readable service name.
	Name string

	// URL is the health check endpoint.
	URL string

	// Optional services do not count against the "all" policy.
	Optional bool

	// Timeout overrides the per-check request timeout. Zero means the
	// PollOptions default.
	Timeout time.Duration
}

// HealthPolicy decides when a set of results counts as ready.
type HealthPolicy string

const (
	// PolicyAll requires every non-optional service healthy.
	PolicyAll HealthPolicy = "all"

	// PolicyAny requires at least one service healthy.
	PolicyAny HealthPolicy = "any"
)

// PollOptions configures bounded readiness polling.
//
// Worst-case wall clock is (MaxAttempts-1)*Interval plus the request
// time of each round: the final attempt is never followed by a sleep.
type PollOptions struct {
	// MaxAttempts bounds the polling loop. Must be >= 1.
	MaxAttempts int

	// Interval is the fixed pause between rounds.
	Interval time.Duration

	// RequestTimeout bounds each individual probe.
	RequestTimeout time.Duration

	// Policy decides when polling can stop early.
	Policy HealthPolicy
}

// DefaultPollOptions matches the stack's expected cold-start window:
// 30 attempts at 2 seconds covers about a minute of container boot.
func DefaultPollOptions() PollOptions {
	return PollOptions{
		MaxAttempts:    30,
		Interval:       2 * time.Second,
		RequestTimeout: 5 * time.Second,
		Policy:         PolicyAll,
	}
}

// HealthStatus is the result of one probe of one service.
type HealthStatus struct {
	// ID is a unique identifier for this check result.
	ID string

	// Name is the service name.
	Name string

	// State is the probe outcome.
	State HealthState

	// Message carries the error text for failed probes.
	Message string

	// Latency is how long the probe took.
	Latency time.Duration

	// LastChecked is when the probe completed.
	LastChecked time.Time

	// HTTPStatus is the response status code, when a response arrived.
	HTTPStatus int
}

// DefinitionsFromConfig maps configured service descriptors to check
// definitions.
func DefinitionsFromConfig(cfg config.HealthConfig) []ServiceDefinition {
	defs := make([]ServiceDefinition, 0, len(cfg.Services))
	for _, s := range cfg.Services {
		defs = append(defs, ServiceDefinition{
			ID:       GenerateID(),
			Name:     s.Name,
			URL:      s.URL,
			Optional: s.Optional,
		})
	}
	return defs
}

// PollOptionsFromConfig maps configured health settings to poll options.
func PollOptionsFromConfig(cfg config.HealthConfig) PollOptions {
	opts := DefaultPollOptions()
	if cfg.MaxAttempts > 0 {
		opts.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.IntervalSeconds > 0 {
		opts.Interval = cfg.Interval()
	}
	if cfg.RequestTimeoutSeconds > 0 {
		opts.RequestTimeout = cfg.RequestTimeout()
	}
	if cfg.Policy == string(PolicyAny) {
		opts.Policy = PolicyAny
	}
	return opts
}

// Healthy folds a result map under the given policy.
//
// PolicyAll ignores optional services: a stack with a flaky optional
// integration still counts as ready. PolicyAny accepts any healthy
// service, optional or not.
func Healthy(results map[string]bool, defs []ServiceDefinition, policy HealthPolicy) bool {
	if policy == PolicyAny {
		for _, ok := range results {
			if ok {
				return true
			}
		}
		return false
	}

	for _, def := range defs {
		if def.Optional {
			continue
		}
		if !results[def.Name] {
			return false
		}
	}
	return true
}

// GenerateID creates a unique identifier for health check entities.
//
// A cryptographically random 16-character hex string; shorter than a
// UUID for log readability.
func GenerateID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp-based ID if crypto/rand fails
		return hex.EncodeToString([]byte(time.Now().Format("20060102150405.000")))[:16]
	}
	return hex.EncodeToString(b)
}
