// Package metrics exposes Prometheus collectors for the locker service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the locker engine and its transports.
type Metrics struct {
	// Command outcomes by command (SEND, GET) and outcome
	CommandOutcome *prometheus.CounterVec

	// Full command cycle latency including capture and persistence
	CycleLatency *prometheus.HistogramVec

	// Capture attempts that yielded no usable face
	CaptureMisses prometheus.Counter

	// Failed two-phase commits
	PersistFailures prometheus.Counter

	KnownFaces    prometheus.Gauge
	OccupiedDoors prometheus.Gauge

	// Inbound messages by kind, including "unknown"
	InboundMessages *prometheus.CounterVec

	// Outbound publish failures by kind
	PublishFailures *prometheus.CounterVec

	PreviewFrames prometheus.Counter
}

// New creates a Metrics instance registered on reg.
// A nil reg uses the default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CommandOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "locker_commands_total",
			Help: "Total locker commands by command and outcome",
		}, []string{"command", "outcome"}),

		CycleLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "locker_command_duration_seconds",
			Help:    "Duration of a full SEND/GET cycle including capture and persistence",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"command"}),

		CaptureMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "locker_capture_misses_total",
			Help: "Capture attempts that produced no usable face embedding",
		}),

		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "locker_persist_failures_total",
			Help: "State commits rejected by the store",
		}),

		KnownFaces: factory.NewGauge(prometheus.GaugeOpts{
			Name: "locker_known_faces",
			Help: "Identities currently enrolled",
		}),

		OccupiedDoors: factory.NewGauge(prometheus.GaugeOpts{
			Name: "locker_occupied_doors",
			Help: "Doors currently assigned to an identity",
		}),

		InboundMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "locker_inbound_messages_total",
			Help: "Inbound bus messages by kind",
		}, []string{"kind"}),

		PublishFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "locker_publish_failures_total",
			Help: "Outbound events that could not be delivered, by kind",
		}, []string{"kind"}),

		PreviewFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "locker_preview_frames_total",
			Help: "Annotated preview frames produced",
		}),
	}
}

// IncrementOutcome records a command outcome.
func (m *Metrics) IncrementOutcome(command, outcome string) {
	if m != nil {
		m.CommandOutcome.WithLabelValues(command, outcome).Inc()
	}
}

// ObserveCycle records the duration of a command cycle.
func (m *Metrics) ObserveCycle(command string, d time.Duration) {
	if m != nil {
		m.CycleLatency.WithLabelValues(command).Observe(d.Seconds())
	}
}

// IncrementCaptureMiss records a capture attempt without a usable face.
func (m *Metrics) IncrementCaptureMiss() {
	if m != nil {
		m.CaptureMisses.Inc()
	}
}

// IncrementPersistFailure records a failed commit.
func (m *Metrics) IncrementPersistFailure() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

// SetState records the committed registry and door occupancy sizes.
func (m *Metrics) SetState(knownFaces, occupiedDoors int) {
	if m != nil {
		m.KnownFaces.Set(float64(knownFaces))
		m.OccupiedDoors.Set(float64(occupiedDoors))
	}
}

// IncrementInbound records an inbound message of the given kind.
func (m *Metrics) IncrementInbound(kind string) {
	if m != nil {
		m.InboundMessages.WithLabelValues(kind).Inc()
	}
}

// IncrementPublishFailure records an undelivered event.
func (m *Metrics) IncrementPublishFailure(kind string) {
	if m != nil {
		m.PublishFailures.WithLabelValues(kind).Inc()
	}
}

// IncrementPreviewFrame records one annotated preview frame.
func (m *Metrics) IncrementPreviewFrame() {
	if m != nil {
		m.PreviewFrames.Inc()
	}
}
