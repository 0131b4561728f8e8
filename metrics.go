package avatarbuilder

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts pipeline work. A nil *Metrics records nothing.
type Metrics struct {
	CacheLookups *prometheus.CounterVec
	Poses        *prometheus.CounterVec
	Extractions  *prometheus.CounterVec
	PoseDuration prometheus.Histogram
}

// NewMetrics registers the collectors with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "avatarbuilder_cache_lookups_total",
			Help: "Fingerprint cache lookups by result",
		}, []string{"result"}),
		Poses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "avatarbuilder_poses_total",
			Help: "Poses processed by outcome",
		}, []string{"outcome"}),
		Extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "avatarbuilder_atlas_extractions_total",
			Help: "Atlas unpack attempts by outcome",
		}, []string{"outcome"}),
		PoseDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "avatarbuilder_pose_duration_seconds",
			Help:    "Time to composite and assemble one pose",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
	}
}

func (m *Metrics) cacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) pose(outcome string) {
	if m == nil {
		return
	}
	m.Poses.WithLabelValues(outcome).Inc()
}

func (m *Metrics) extraction(outcome string) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observePose(start time.Time) {
	if m == nil {
		return
	}
	m.PoseDuration.Observe(time.Since(start).Seconds())
}

func poseOutcome(err error) string {
	switch {
	case errors.Is(err, ErrEmptyIntersection):
		return "skipped"
	case errors.Is(err, ErrEncodeFailure):
		return "encode_failed"
	default:
		return "failed"
	}
}
