package app

import (
	"sync/atomic"
	"time"
)

// Metrics tracks plugin initialization and event counters.
type Metrics struct {
	// Plugin initialization
	initCount   atomic.Uint64
	initFailed  atomic.Uint64
	initTotalNs atomic.Int64
	initMinNs   atomic.Int64
	initMaxNs   atomic.Int64

	events atomic.Uint64
	mounts atomic.Uint64

	startTime time.Time
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Initialized uint64        `json:"initialized"`
	Failed      uint64        `json:"failed"`
	AvgInit     time.Duration `json:"avgInit"`
	MinInit     time.Duration `json:"minInit"`
	MaxInit     time.Duration `json:"maxInit"`
	Events      uint64        `json:"events"`
	Mounts      uint64        `json:"mounts"`
	Uptime      time.Duration `json:"uptime"`
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	m := &Metrics{startTime: time.Now()}
	// Initialize min to max int64 so the first sample is smaller
	m.initMinNs.Store(1<<63 - 1)
	return m
}

// RecordInit records one plugin initialization.
func (m *Metrics) RecordInit(duration time.Duration, failed bool) {
	ns := duration.Nanoseconds()

	m.initCount.Add(1)
	m.initTotalNs.Add(ns)
	if failed {
		m.initFailed.Add(1)
	}

	for {
		old := m.initMinNs.Load()
		if ns >= old || m.initMinNs.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.initMaxNs.Load()
		if ns <= old || m.initMaxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordEvent records a published event.
func (m *Metrics) RecordEvent() {
	m.events.Add(1)
}

// RecordMount records a static mount.
func (m *Metrics) RecordMount() {
	m.mounts.Add(1)
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	count := m.initCount.Load()
	s := MetricsSnapshot{
		Initialized: count - m.initFailed.Load(),
		Failed:      m.initFailed.Load(),
		Events:      m.events.Load(),
		Mounts:      m.mounts.Load(),
		Uptime:      time.Since(m.startTime),
	}
	if count > 0 {
		s.AvgInit = time.Duration(m.initTotalNs.Load() / int64(count))
		s.MinInit = time.Duration(m.initMinNs.Load())
		s.MaxInit = time.Duration(m.initMaxNs.Load())
	}
	return s
}
