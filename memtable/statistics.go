// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package memtable

import "github.com/prometheus/client_golang/prometheus"

// PrometheusStatistics adapts a prometheus counter vector, labeled by tick
// name, to the Statistics collaborator the inserter calls RecordTick on —
// grounding MemTableOptions.Statistics in a concrete, wireable metrics
// backend rather than leaving it an interface nobody implements.
type PrometheusStatistics struct {
	ticks *prometheus.CounterVec
}

// NewPrometheusStatistics constructs a PrometheusStatistics. Register its
// Collector with a prometheus.Registerer to expose the counters.
func NewPrometheusStatistics() *PrometheusStatistics {
	return &PrometheusStatistics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "batchkv",
			Subsystem: "memtable",
			Name:      "ticks_total",
			Help:      "Count of memtable inserter events by tick name.",
		}, []string{"tick"}),
	}
}

// RecordTick implements Statistics.
func (s *PrometheusStatistics) RecordTick(key string) {
	s.ticks.WithLabelValues(key).Inc()
}

// Collector returns the underlying prometheus.Collector for registration.
func (s *PrometheusStatistics) Collector() prometheus.Collector { return s.ticks }
