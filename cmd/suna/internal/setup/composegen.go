// Copyright (C) 2025 Kortix AI (hello@kortix.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package setup

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Platform Compose Descriptor
// =============================================================================

// PlatformComposeSpec drives generation of the platform-specific compose
// descriptor from the repository's base descriptor.
type PlatformComposeSpec struct {
	// BaseFile is the base descriptor to read (docker-compose.yaml).
	BaseFile string

	// OutFile is the generated descriptor to write
	// (docker-compose.mac.yaml).
	OutFile string

	// Platform is the container platform string, e.g. "linux/arm64".
	Platform string

	// AppleSilicon selects the larger backend memory envelope: arm64
	// Macs run the backend's browser tooling under more memory
	// pressure than Intel hosts.
	AppleSilicon bool
}

// serviceTuning is the per-service resource envelope applied on top of
// the base descriptor.
type serviceTuning struct {
	memoryLimit       string
	memoryReservation string
}

// platformTuning returns the services the generated descriptor pins,
// with their memory envelopes.
func platformTuning(appleSilicon bool) map[string]serviceTuning {
	backend := serviceTuning{"6G", "3G"}
	if appleSilicon {
		backend = serviceTuning{"8G", "4G"}
	}
	return map[string]serviceTuning{
		"backend":  backend,
		"frontend": {"2G", "1G"},
		"redis":    {"1G", "512M"},
		"rabbitmq": {"1G", "512M"},
	}
}

// GeneratePlatformCompose writes the platform compose descriptor.
//
// # Description
//
// Reads the base descriptor, pins every known service to the host
// platform, applies per-service memory limits and reservations, and
// adds the platform environment entries the backend expects. Services
// absent from the base descriptor are skipped rather than invented.
// The result is written atomically, so an interrupted run never leaves
// a truncated descriptor for `docker compose` to trip over.
func GeneratePlatformCompose(spec PlatformComposeSpec) error {
	data, err := os.ReadFile(spec.BaseFile)
	if err != nil {
		return &ConfigWriteError{Path: spec.OutFile, Err: fmt.Errorf("read base descriptor: %w", err)}
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return &ConfigWriteError{Path: spec.OutFile, Err: fmt.Errorf("parse base descriptor: %w", err)}
	}

	services, ok := doc["services"].(map[string]any)
	if !ok {
		return &ConfigWriteError{Path: spec.OutFile, Err: fmt.Errorf("base descriptor %s has no services map", spec.BaseFile)}
	}

	for name, tuning := range platformTuning(spec.AppleSilicon) {
		svc, ok := services[name].(map[string]any)
		if !ok {
			continue
		}
		svc["platform"] = spec.Platform
		applyResourceEnvelope(svc, tuning)
		if name == "backend" {
			appendEnvironment(svc, map[string]string{
				"DOCKER_PLATFORM": spec.Platform,
			})
		}
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return &ConfigWriteError{Path: spec.OutFile, Err: err}
	}

	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(generatedHeader)
	b.WriteString("\n# Platform: ")
	b.WriteString(spec.Platform)
	b.WriteString("\n")
	b.Write(out)

	return WriteFileAtomic(spec.OutFile, b.String(), 0644)
}

// applyResourceEnvelope sets deploy.resources memory limits without
// discarding other deploy keys the base descriptor may carry.
func applyResourceEnvelope(svc map[string]any, tuning serviceTuning) {
	deploy, ok := svc["deploy"].(map[string]any)
	if !ok {
		deploy = make(map[string]any)
		svc["deploy"] = deploy
	}
	deploy["resources"] = map[string]any{
		"limits":       map[string]any{"memory": tuning.memoryLimit},
		"reservations": map[string]any{"memory": tuning.memoryReservation},
	}
}

// appendEnvironment adds entries to a service's environment block,
// handling both the list and map forms compose accepts.
func appendEnvironment(svc map[string]any, entries map[string]string) {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	switch env := svc["environment"].(type) {
	case []any:
		for _, k := range keys {
			env = append(env, fmt.Sprintf("%s=%s", k, entries[k]))
		}
		svc["environment"] = env
	case map[string]any:
		for _, k := range keys {
			env[k] = entries[k]
		}
	default:
		list := make([]any, 0, len(keys))
		for _, k := range keys {
			list = append(list, fmt.Sprintf("%s=%s", k, entries[k]))
		}
		svc["environment"] = list
	}
}
