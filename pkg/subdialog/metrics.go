package subdialog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TerminationCause labels why a Sub entered Terminated, for the
// subscriptions_terminated_total counter.
type TerminationCause string

const (
	CauseNotifyTimeout    TerminationCause = "notify_timeout"
	CauseExpiresTimeout   TerminationCause = "expires_timeout"
	CauseReplyFailure     TerminationCause = "reply_failure"
	CauseNotifyTerminated TerminationCause = "notify_terminated"
	CauseMissingExpires   TerminationCause = "missing_expires"
	CauseForced           TerminationCause = "forced"
)

// Metrics collects Prometheus metrics for a subdialog.Set tree. All
// recorder methods are no-ops when the collector was built with
// MetricsEnabled: false, so callers never need to guard call sites.
type Metrics struct {
	enabled bool

	created           prometheus.Counter
	terminated        *prometheus.CounterVec
	active            prometheus.Gauge
	pendingRejections prometheus.Counter
	timerNFired       prometheus.Counter
	timerExpFired     prometheus.Counter
}

// NewMetrics builds a Metrics collector registered against reg. Pass a
// prometheus.NewRegistry() in tests to avoid colliding with the global
// default registry across parallel test packages.
func NewMetrics(cfg Config, reg prometheus.Registerer) *Metrics {
	if !cfg.MetricsEnabled {
		return &Metrics{enabled: false}
	}

	factory := promauto.With(reg)
	return &Metrics{
		enabled: true,
		created: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.MetricsNamespace,
			Subsystem: cfg.MetricsSubsystem,
			Name:      "subscriptions_created_total",
			Help:      "Total subscriptions created (SUBSCRIBE or REFER admitted).",
		}),
		terminated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.MetricsNamespace,
			Subsystem: cfg.MetricsSubsystem,
			Name:      "subscriptions_terminated_total",
			Help:      "Total subscriptions terminated, labeled by cause.",
		}, []string{"cause"}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.MetricsNamespace,
			Subsystem: cfg.MetricsSubsystem,
			Name:      "subscriptions_active",
			Help:      "Subscriptions currently not in the Terminated state.",
		}),
		pendingRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.MetricsNamespace,
			Subsystem: cfg.MetricsSubsystem,
			Name:      "pending_subscribe_rejections_total",
			Help:      "SUBSCRIBE/REFER requests refused with 500 due to an overlapping transaction.",
		}),
		timerNFired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.MetricsNamespace,
			Subsystem: cfg.MetricsSubsystem,
			Name:      "timer_n_fired_total",
			Help:      "Timer N (RFC 6665) expiries observed.",
		}),
		timerExpFired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.MetricsNamespace,
			Subsystem: cfg.MetricsSubsystem,
			Name:      "timer_expires_fired_total",
			Help:      "Subscription-expiry timer expiries observed.",
		}),
	}
}

func (m *Metrics) recordCreated() {
	if !m.enabled {
		return
	}
	m.created.Inc()
	m.active.Inc()
}

func (m *Metrics) recordTerminated(cause TerminationCause) {
	if !m.enabled {
		return
	}
	m.terminated.WithLabelValues(string(cause)).Inc()
	m.active.Dec()
}

func (m *Metrics) recordPendingRejection() {
	if !m.enabled {
		return
	}
	m.pendingRejections.Inc()
}

func (m *Metrics) recordTimerFired(cause timerCause) {
	if !m.enabled {
		return
	}
	switch cause {
	case timerCauseN:
		m.timerNFired.Inc()
	case timerCauseExpires:
		m.timerExpFired.Inc()
	}
}
