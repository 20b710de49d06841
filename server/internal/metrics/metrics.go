// Package metrics exposes subtrack counters in the Prometheus text format.
package metrics

import (
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/subtrack/subtrack/server/internal/store"
)

// Metric names.
const (
	nameUpserts   = "subtrack_upserts_total"
	nameSweeps    = "subtrack_sweeps_total"
	nameSwept     = "subtrack_swept_entries_total"
	nameEntries   = "subtrack_entries"
	namePermanent = "subtrack_permanent_entries"
	labelResult   = "result"
	resultOK      = "ok"
	resultInvalid = "invalid"
	resultError   = "error"
)

// Counter is the source of the entry gauges, read at scrape time.
type Counter interface {
	Counts() (total, permanent int)
}

// Metrics accumulates request and sweep outcomes. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	src Counter

	upsertsOK      atomic.Uint64
	upsertsInvalid atomic.Uint64
	upsertsError   atomic.Uint64
	sweepsOK       atomic.Uint64
	sweepsError    atomic.Uint64
	swept          atomic.Uint64
}

// New creates Metrics whose gauges are read from src.
func New(src Counter) *Metrics {
	return &Metrics{src: src}
}

// ObserveUpsert records the outcome of one registration.
func (m *Metrics) ObserveUpsert(err error) {
	if m == nil {
		return
	}
	switch {
	case err == nil:
		m.upsertsOK.Add(1)
	case errors.Is(err, store.ErrInvalidInput):
		m.upsertsInvalid.Add(1)
	default:
		m.upsertsError.Add(1)
	}
}

// ObserveSweep records the outcome of one sweep. It satisfies reaper.Observer.
func (m *Metrics) ObserveSweep(removed int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.sweepsError.Add(1)
		return
	}
	m.sweepsOK.Add(1)
	m.swept.Add(uint64(removed))
}

// Families returns the current metric families.
func (m *Metrics) Families() []*dto.MetricFamily {
	if m == nil {
		return nil
	}
	total, perm := 0, 0
	if m.src != nil {
		total, perm = m.src.Counts()
	}
	return []*dto.MetricFamily{
		counterFamily(nameUpserts, "Registrations by outcome.",
			labelled(resultOK, m.upsertsOK.Load()),
			labelled(resultInvalid, m.upsertsInvalid.Load()),
			labelled(resultError, m.upsertsError.Load()),
		),
		counterFamily(nameSweeps, "Expiry sweeps by outcome.",
			labelled(resultOK, m.sweepsOK.Load()),
			labelled(resultError, m.sweepsError.Load()),
		),
		counterFamily(nameSwept, "UIDs removed by sweeps.",
			&dto.Metric{Counter: &dto.Counter{Value: ptr(float64(m.swept.Load()))}},
		),
		gaugeFamily(nameEntries, "UIDs currently stored, including expired ones not yet swept.", float64(total)),
		gaugeFamily(namePermanent, "UIDs stored with a permanent policy.", float64(perm)),
	}
}

// ServeHTTP writes the metric families in the Prometheus text format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))

	enc := expfmt.NewEncoder(w, format)
	for _, mf := range m.Families() {
		if err := enc.Encode(mf); err != nil {
			slog.Warn("metrics: encode failed", "family", mf.GetName(), "err", err)
			return
		}
	}
}

func counterFamily(name, help string, ms ...*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   ptr(name),
		Help:   ptr(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: ms,
	}
}

func gaugeFamily(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   ptr(name),
		Help:   ptr(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: ptr(v)}}},
	}
}

func labelled(result string, v uint64) *dto.Metric {
	return &dto.Metric{
		Label:   []*dto.LabelPair{{Name: ptr(labelResult), Value: ptr(result)}},
		Counter: &dto.Counter{Value: ptr(float64(v))},
	}
}

func ptr[T any](v T) *T { return &v }
