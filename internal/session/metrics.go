package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "animlist"

// Metrics holds the session counters.
//
// One Metrics value is usually shared by every session of a process; the
// counters then aggregate across sessions.
type Metrics struct {
	Submissions        prometheus.Counter
	InvalidSubmissions prometheus.Counter
	CancelledUpdates   prometheus.Counter
	FramesEmitted      *prometheus.CounterVec
	DroppedFrames      prometheus.Counter
	ActiveSessions     prometheus.Gauge
}

// NewMetrics creates the session metrics and registers them on reg.
// A nil reg leaves them unregistered, which is what tests and one-off
// sessions want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "submissions_total",
			Help:      "Snapshots accepted by Submit.",
		}),
		InvalidSubmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "invalid_submissions_total",
			Help:      "Snapshots rejected because of duplicate keys.",
		}),
		CancelledUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cancelled_updates_total",
			Help:      "Updates superseded before their settled frame was emitted.",
		}),
		FramesEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_emitted_total",
			Help:      "Frames emitted, by kind.",
		}, []string{"kind"}),
		DroppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "subscriber_dropped_frames_total",
			Help:      "Frames replaced before a slow subscriber read them.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_sessions",
			Help:      "Sessions currently held by a manager.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Submissions,
			m.InvalidSubmissions,
			m.CancelledUpdates,
			m.FramesEmitted,
			m.DroppedFrames,
			m.ActiveSessions,
		)
	}
	return m
}
