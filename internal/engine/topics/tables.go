// Adaptix - Adaptive Assessment and Item Delivery Engine
// Copyright 2026 A. Khatri (adaptix-learn)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adaptix-learn/adaptix

// Package topics holds the static JEE weightage and prerequisite-depth
// tables as embedded data. Missing topics fall back to a medium weight and
// a shallow depth so an out-of-table topic never breaks ranking.
package topics

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Defaults for topics absent from the table.
const (
	DefaultWeight = 0.5
	DefaultDepth  = 1
)

//go:embed tables.yaml
var rawTables []byte

type tableEntry struct {
	Weight float64 `yaml:"weight"`
	Depth  int     `yaml:"depth"`
}

type tableFile struct {
	Topics map[string]tableEntry `yaml:"topics"`
}

var (
	entries map[string]tableEntry

	// all is the sorted topic universe, fixed at init for deterministic
	// iteration order in the rankers.
	all []string
)

//nolint:gochecknoinits // embedded table must be available before any lookup
func init() {
	var parsed tableFile
	if err := yaml.Unmarshal(rawTables, &parsed); err != nil {
		panic(fmt.Sprintf("topics: parse embedded tables: %v", err))
	}

	entries = parsed.Topics
	all = make([]string, 0, len(entries))
	for topic := range entries {
		all = append(all, topic)
	}
	sort.Strings(all)
}

// All returns the full topic universe in lexicographic order. Callers must
// not mutate the returned slice.
func All() []string {
	return all
}

// Weight returns the JEE weightage for a topic, DefaultWeight when the
// topic is not in the table.
func Weight(topic string) float64 {
	if e, ok := entries[topic]; ok {
		return e.Weight
	}
	return DefaultWeight
}

// Depth returns the prerequisite depth (0 foundational .. 3 advanced),
// DefaultDepth when the topic is not in the table.
func Depth(topic string) int {
	if e, ok := entries[topic]; ok {
		return e.Depth
	}
	return DefaultDepth
}

// Known reports whether a topic is present in the table.
func Known(topic string) bool {
	_, ok := entries[topic]
	return ok
}
