package telemetry

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/victornm/dramquiz/internal/domain"
	"github.com/victornm/dramquiz/internal/event"
)

const namespace = "dramquiz"

// Metrics counts game events for the /metrics endpoint.
type Metrics struct {
	SessionsStarted     *prometheus.CounterVec
	SessionsCompleted   *prometheus.CounterVec
	RoundsResolved      *prometheus.CounterVec
	RoundReward         prometheus.Histogram
	SessionsRecorded    prometheus.Counter
	PersistenceDeferred prometheus.Counter
	HTTPRequests        *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Sessions that showed their first round.",
		}, []string{"mode"}),
		SessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Sessions that reached the end of their last round.",
		}, []string{"mode"}),
		RoundsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_resolved_total",
			Help:      "Resolved rounds by result.",
		}, []string{"result"}),
		RoundReward: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_reward",
			Help:      "Reward of correctly answered rounds.",
			Buckets:   []float64{10, 25, 50, 100, 150, 200, 300},
		}),
		SessionsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_recorded_total",
			Help:      "Completed sessions stored for the first time.",
		}),
		PersistenceDeferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_deferred_total",
			Help:      "Completed sessions whose storage failed after every retry.",
		}),
		HTTPRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		m.SessionsStarted,
		m.SessionsCompleted,
		m.RoundsResolved,
		m.RoundReward,
		m.SessionsRecorded,
		m.PersistenceDeferred,
		m.HTTPRequests,
	)
	return m
}

// Subscribe keeps the counters current from the events on eb.
func (m *Metrics) Subscribe(eb *event.Bus) {
	eb.Subscribe(domain.EventNameSessionStarted, "metrics", func(_ context.Context, e event.Event) error {
		m.SessionsStarted.WithLabelValues(string(e.(domain.EventSessionStarted).Mode)).Inc()
		return nil
	})

	eb.Subscribe(domain.EventNameRoundResolved, "metrics", func(_ context.Context, e event.Event) error {
		o := e.(domain.EventRoundResolved).Outcome
		switch {
		case o.TimedOut:
			m.RoundsResolved.WithLabelValues("timeout").Inc()
		case o.Correct:
			m.RoundsResolved.WithLabelValues("correct").Inc()
			m.RoundReward.Observe(float64(o.Reward))
		default:
			m.RoundsResolved.WithLabelValues("incorrect").Inc()
		}
		return nil
	})

	eb.Subscribe(domain.EventNameSessionCompleted, "metrics", func(_ context.Context, e event.Event) error {
		m.SessionsCompleted.WithLabelValues(string(e.(domain.EventSessionCompleted).Summary.Mode)).Inc()
		return nil
	})

	eb.Subscribe(domain.EventNameSessionRecorded, "metrics", func(context.Context, event.Event) error {
		m.SessionsRecorded.Inc()
		return nil
	})

	eb.Subscribe(domain.EventNamePersistenceDeferred, "metrics", func(context.Context, event.Event) error {
		m.PersistenceDeferred.Inc()
		return nil
	})
}

// GinMiddleware observes the latency of every routed request.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
