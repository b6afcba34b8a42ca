package prometheus

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-relay/core"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultDurationBuckets covers tick and delivery latencies in milliseconds.
var DefaultDurationBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Recorder implements core.MetricsRecorder on top of Prometheus vectors.
// Collectors are created lazily on first use of a metric name, with the
// label keys observed at that point. Later observations with extra tags
// only report the registered keys so the label set stays stable.
type Recorder struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	namespace  string
	buckets    []float64

	counters   map[string]*counterEntry
	histograms map[string]*histogramEntry
}

type counterEntry struct {
	vec  *prometheus.CounterVec
	keys []string
}

type histogramEntry struct {
	vec  *prometheus.HistogramVec
	keys []string
}

type RecorderOption func(*Recorder)

func WithNamespace(namespace string) RecorderOption {
	return func(r *Recorder) {
		if strings.TrimSpace(namespace) != "" {
			r.namespace = strings.TrimSpace(namespace)
		}
	}
}

func WithDurationBuckets(buckets []float64) RecorderOption {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = buckets
		}
	}
}

func NewRecorder(registerer prometheus.Registerer, opts ...RecorderOption) *Recorder {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	recorder := &Recorder{
		registerer: registerer,
		namespace:  "relay",
		buckets:    DefaultDurationBuckets,
		counters:   map[string]*counterEntry{},
		histograms: map[string]*histogramEntry{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(recorder)
		}
	}
	return recorder
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value <= 0 {
		return
	}
	metric := sanitizeMetricName(r.namespace, name)
	if metric == "" {
		return
	}

	r.mu.Lock()
	entry, ok := r.counters[metric]
	if !ok {
		keys := labelKeys(tags)
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metric,
			Help: "relay counter " + name,
		}, keys)
		if registered, err := registerCollector(r.registerer, vec); err != nil {
			r.mu.Unlock()
			return
		} else if existing, ok := registered.(*prometheus.CounterVec); ok {
			vec = existing
		}
		entry = &counterEntry{vec: vec, keys: keys}
		r.counters[metric] = entry
	}
	r.mu.Unlock()

	entry.vec.WithLabelValues(labelValues(entry.keys, tags)...).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	metric := sanitizeMetricName(r.namespace, name)
	if metric == "" {
		return
	}

	r.mu.Lock()
	entry, ok := r.histograms[metric]
	if !ok {
		keys := labelKeys(tags)
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metric,
			Help:    "relay histogram " + name,
			Buckets: r.buckets,
		}, keys)
		if registered, err := registerCollector(r.registerer, vec); err != nil {
			r.mu.Unlock()
			return
		} else if existing, ok := registered.(*prometheus.HistogramVec); ok {
			vec = existing
		}
		entry = &histogramEntry{vec: vec, keys: keys}
		r.histograms[metric] = entry
	}
	r.mu.Unlock()

	entry.vec.WithLabelValues(labelValues(entry.keys, tags)...).Observe(value)
}

func registerCollector(registerer prometheus.Registerer, collector prometheus.Collector) (prometheus.Collector, error) {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if ok := asAlreadyRegistered(err, &already); ok {
			return already.ExistingCollector, nil
		}
		return nil, err
	}
	return collector, nil
}

func asAlreadyRegistered(err error, target *prometheus.AlreadyRegisteredError) bool {
	if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
		*target = are
		return true
	}
	return false
}

func sanitizeMetricName(namespace, name string) string {
	cleaned := strings.TrimSpace(strings.ToLower(name))
	if cleaned == "" {
		return ""
	}
	replacer := strings.NewReplacer(".", "_", "-", "_", " ", "_", "/", "_")
	cleaned = replacer.Replace(cleaned)
	prefix := namespace + "_"
	if namespace != "" && !strings.HasPrefix(cleaned, prefix) {
		cleaned = prefix + cleaned
	}
	return cleaned
}

func labelKeys(tags map[string]string) []string {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func labelValues(keys []string, tags map[string]string) []string {
	if len(keys) == 0 {
		return nil
	}
	values := make([]string, len(keys))
	for i, key := range keys {
		values[i] = tags[key]
	}
	return values
}

var _ core.MetricsRecorder = (*Recorder)(nil)
