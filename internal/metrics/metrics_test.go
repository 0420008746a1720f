package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementOutcome("SEND", "assigned")
	m.IncrementOutcome("SEND", "assigned")
	m.IncrementOutcome("GET", "no_face")
	m.SetState(3, 2)
	m.IncrementInbound("execute")
	m.IncrementPersistFailure()
	m.ObserveCycle("SEND", 150*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CommandOutcome.WithLabelValues("SEND", "assigned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandOutcome.WithLabelValues("GET", "no_face")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.KnownFaces))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OccupiedDoors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InboundMessages.WithLabelValues("execute")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistFailures))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CycleLatency))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementOutcome("SEND", "assigned")
		m.ObserveCycle("GET", time.Second)
		m.IncrementCaptureMiss()
		m.IncrementPersistFailure()
		m.SetState(1, 1)
		m.IncrementInbound("door_status")
		m.IncrementPublishFailure("door_open")
		m.IncrementPreviewFrame()
	})
}
