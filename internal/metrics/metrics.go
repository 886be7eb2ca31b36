// Package metrics records cache and remote-source activity with prometheus.
//
// A nil *Metrics is valid and records nothing, so components can take an
// optional metrics handle without branching.
package metrics

import (
	"errors"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Outcome label values for remote requests.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the collectors of one cached provider.
type Metrics struct {
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	remoteRequests *prometheus.CounterVec
	remoteDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with registerer.
// A nil registerer leaves them unregistered, which is what tests and the CLI
// summary need.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chaincache_cache_hits_total",
			Help: "Number of queries answered from the local cache",
		}, []string{"kind"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chaincache_cache_misses_total",
			Help: "Number of queries that fell back to the remote source",
		}, []string{"kind"}),
		remoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chaincache_remote_requests_total",
			Help: "Number of remote fetches by kind and outcome",
		}, []string{"kind", "outcome"}),
		remoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chaincache_remote_request_duration_seconds",
			Help:    "Duration of remote fetches including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}

	if registerer == nil {
		return m, nil
	}

	err := errors.Join(
		registerer.Register(m.cacheHits),
		registerer.Register(m.cacheMisses),
		registerer.Register(m.remoteRequests),
		registerer.Register(m.remoteDuration),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// MustNew is New that panics on registration errors.
func MustNew(registerer prometheus.Registerer) *Metrics {
	m, err := New(registerer)
	if err != nil {
		panic(err)
	}
	return m
}

// RecordCacheHit records a query answered from the cache.
func (m *Metrics) RecordCacheHit(kind string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(kind).Inc()
}

// RecordCacheMiss records a query that needed the remote source.
func (m *Metrics) RecordCacheMiss(kind string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(kind).Inc()
}

// RecordRemoteCall records one remote fetch with its duration and result.
func (m *Metrics) RecordRemoteCall(kind string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.remoteRequests.WithLabelValues(kind, outcome).Inc()
	m.remoteDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// KindStats is the per-kind view of a Snapshot.
type KindStats struct {
	Hits         int64
	Misses       int64
	RemoteOK     int64
	RemoteErrors int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Kinds map[string]KindStats
}

// Totals sums the per-kind counters.
func (s Snapshot) Totals() KindStats {
	var total KindStats
	for _, k := range s.Kinds {
		total.Hits += k.Hits
		total.Misses += k.Misses
		total.RemoteOK += k.RemoteOK
		total.RemoteErrors += k.RemoteErrors
	}
	return total
}

// HitRate returns the cache hit rate as a percentage (0-100).
// Returns 0 if no lookups have occurred.
func (s Snapshot) HitRate() float64 {
	t := s.Totals()
	lookups := t.Hits + t.Misses
	if lookups == 0 {
		return 0
	}
	return float64(t.Hits) / float64(lookups) * 100
}

// SortedKinds returns the kinds present in the snapshot in lexical order.
func (s Snapshot) SortedKinds() []string {
	out := make([]string, 0, len(s.Kinds))
	for k := range s.Kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Snapshot reads the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{Kinds: make(map[string]KindStats)}
	if m == nil {
		return snap
	}

	collect(m.cacheHits, func(labels map[string]string, v int64) {
		ks := snap.Kinds[labels["kind"]]
		ks.Hits += v
		snap.Kinds[labels["kind"]] = ks
	})
	collect(m.cacheMisses, func(labels map[string]string, v int64) {
		ks := snap.Kinds[labels["kind"]]
		ks.Misses += v
		snap.Kinds[labels["kind"]] = ks
	})
	collect(m.remoteRequests, func(labels map[string]string, v int64) {
		ks := snap.Kinds[labels["kind"]]
		if labels["outcome"] == OutcomeError {
			ks.RemoteErrors += v
		} else {
			ks.RemoteOK += v
		}
		snap.Kinds[labels["kind"]] = ks
	})
	return snap
}

// collect walks every counter child of c.
func collect(c prometheus.Collector, fn func(labels map[string]string, value int64)) {
	ch := make(chan prometheus.Metric)
	go func() {
		c.Collect(ch)
		close(ch)
	}()

	for metric := range ch {
		var pb dto.Metric
		if err := metric.Write(&pb); err != nil || pb.GetCounter() == nil {
			continue
		}
		labels := make(map[string]string, len(pb.GetLabel()))
		for _, lp := range pb.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		fn(labels, int64(pb.GetCounter().GetValue()))
	}
}
