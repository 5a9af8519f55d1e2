package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncTicketIssued()
	m.IncTicketIssued()
	m.IncBlockDiscarded("low_confidence")
	m.IncBlockDiscarded("low_confidence")
	m.IncBlockDiscarded("not_line")
	m.IncDedupeSkip()
	m.IncIntentDispatched("ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TicketsIssued))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BlocksDiscarded.WithLabelValues("low_confidence")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DedupeSkips))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IntentsDispatched.WithLabelValues("ok")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncTicketIssued()
		m.IncTicketRejected("unauthorized")
		m.IncUploadStored()
		m.IncUploadRejected("expired")
		m.IncObjectProcessed("processed")
		m.ObserveRecognition("ok", 0.2)
		m.IncBlockDiscarded("not_line")
		m.ObserveCycle(1.5)
		m.IncDedupeSkip()
		m.IncIntentDispatched("failed")
		m.IncCaptureTrigger("ignored")
	})
}
