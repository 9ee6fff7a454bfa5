// Package telemetry exposes Prometheus collectors for sign calls and
// identity initialization.
package telemetry

import (
	"errors"
	"strconv"
	"time"

	"smcu/go-signer/internal/identity"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "smcu"

type Metrics struct {
	signTotal    *prometheus.CounterVec
	signDuration *prometheus.HistogramVec
	identityInit *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests and embedded hosts without a scrape
// endpoint want. If reg already holds a Metrics, that one is returned so
// repeated initialization in one process keeps a single set of series.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		signTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sign_total",
			Help:      "Sign calls by wire format and status code.",
		}, []string{"format", "status"}),
		signDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sign_duration_seconds",
			Help:      "Latency of successful sign calls.",
			Buckets:   prometheus.ExponentialBuckets(10e-6, 2, 12),
		}, []string{"format"}),
		identityInit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_init_total",
			Help:      "Identity initializations by source and persistence outcome.",
		}, []string{"source", "persisted"}),
	}
	if reg == nil {
		return m, nil
	}
	if err := reg.Register(m); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*Metrics); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return m, nil
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.signTotal.Describe(ch)
	m.signDuration.Describe(ch)
	m.identityInit.Describe(ch)
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.signTotal.Collect(ch)
	m.signDuration.Collect(ch)
	m.identityInit.Collect(ch)
}

// ObserveSign records one sign call. status is the call-surface status code.
func (m *Metrics) ObserveSign(format string, status int32, started time.Time) {
	if m == nil {
		return
	}
	m.signTotal.WithLabelValues(format, strconv.Itoa(int(status))).Inc()
	if status == 0 {
		m.signDuration.WithLabelValues(format).Observe(time.Since(started).Seconds())
	}
}

func (m *Metrics) IdentityInitialized(source identity.Source, persisted bool) {
	if m == nil {
		return
	}
	m.identityInit.WithLabelValues(string(source), strconv.FormatBool(persisted)).Inc()
}

var (
	_ identity.Observer    = (*Metrics)(nil)
	_ prometheus.Collector = (*Metrics)(nil)
)
