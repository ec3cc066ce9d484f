package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// PacketsParsed counts capture lines successfully decoded into records.
	PacketsParsed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_packets_parsed_total",
		Help: "Capture lines successfully parsed into packet records.",
	})

	// LinesDropped counts malformed capture lines that were skipped.
	LinesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_capture_lines_dropped_total",
		Help: "Malformed capture lines counted and dropped.",
	})

	// WindowSize tracks the current number of records in the flow window.
	WindowSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_flow_window_packets",
		Help: "Current number of packet records held in the flow window.",
	})

	// EventsPublished counts fabric publications by topic.
	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_fabric_events_published_total",
		Help: "Events published on the fabric, by topic.",
	}, []string{"topic"})

	// EventsDropped counts events lost to subscriber backpressure, by topic.
	EventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_fabric_events_dropped_total",
		Help: "Events dropped from full subscriber queues, by topic.",
	}, []string{"topic"})

	// Detections counts completed verdicts by final prediction.
	Detections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_detections_total",
		Help: "Completed detection verdicts, by prediction.",
	}, []string{"prediction"})

	// GraderFailures counts grader calls absorbed by the fusion policy.
	GraderFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_grader_failures_total",
		Help: "Failed grader calls absorbed by the fusion policy, by grader.",
	}, []string{"grader"})

	// ReputationCacheHits counts reputation lookups served from cache.
	ReputationCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_reputation_cache_hits_total",
		Help: "Reputation lookups answered by a fresh cache entry.",
	})

	// ReputationCacheMisses counts reputation lookups that went upstream.
	ReputationCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_reputation_cache_misses_total",
		Help: "Reputation lookups that issued an upstream request.",
	})
)

func init() {
	prometheus.MustRegister(
		PacketsParsed,
		LinesDropped,
		WindowSize,
		EventsPublished,
		EventsDropped,
		Detections,
		GraderFailures,
		ReputationCacheHits,
		ReputationCacheMisses,
	)
}
