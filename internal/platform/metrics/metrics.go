package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the listcart services. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	TicketsIssued       prometheus.Counter
	TicketsRejected     *prometheus.CounterVec
	UploadsStored       prometheus.Counter
	UploadsRejected     *prometheus.CounterVec
	ObjectsProcessed    *prometheus.CounterVec
	RecognitionAttempts *prometheus.CounterVec
	RecognitionLatency  prometheus.Histogram
	BlocksDiscarded     *prometheus.CounterVec
	CycleDuration       prometheus.Histogram
	DedupeSkips         prometheus.Counter
	IntentsDispatched   *prometheus.CounterVec
	CaptureTriggers     *prometheus.CounterVec
}

// New creates and registers all metrics on reg. Passing nil registers on the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		TicketsIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "listcart_upload_tickets_issued_total",
			Help: "Upload tickets issued to authenticated subjects",
		}),
		TicketsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "listcart_upload_tickets_rejected_total",
			Help: "Upload ticket requests rejected, by error code",
		}, []string{"code"}),
		UploadsStored: f.NewCounter(prometheus.CounterOpts{
			Name: "listcart_uploads_stored_total",
			Help: "Objects written through signed upload URLs",
		}),
		UploadsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "listcart_uploads_rejected_total",
			Help: "Signed uploads rejected, by error code",
		}, []string{"code"}),
		ObjectsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "listcart_objects_processed_total",
			Help: "Object-created events handled by the ingestion trigger, by outcome",
		}, []string{"outcome"}),
		RecognitionAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "listcart_recognition_attempts_total",
			Help: "Text recognition calls, by result",
		}, []string{"result"}),
		RecognitionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "listcart_recognition_duration_seconds",
			Help:    "Latency of individual text recognition calls",
			Buckets: prometheus.DefBuckets,
		}),
		BlocksDiscarded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "listcart_blocks_discarded_total",
			Help: "Recognized blocks that produced no intent, by reason",
		}, []string{"reason"}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "listcart_object_cycle_duration_seconds",
			Help:    "Time from event receipt to the last dispatch for one object",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}),
		DedupeSkips: f.NewCounter(prometheus.CounterOpts{
			Name: "listcart_dedupe_skips_total",
			Help: "Object-created events skipped because the object was already claimed",
		}),
		IntentsDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "listcart_intents_dispatched_total",
			Help: "Add-item intents sent to the cart service, by result",
		}, []string{"result"}),
		CaptureTriggers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "listcart_capture_triggers_total",
			Help: "Capture triggers received by the client, by disposition",
		}, []string{"disposition"}),
	}
}

func (m *Metrics) IncTicketIssued() {
	if m == nil {
		return
	}
	m.TicketsIssued.Inc()
}

func (m *Metrics) IncTicketRejected(code string) {
	if m == nil {
		return
	}
	m.TicketsRejected.WithLabelValues(code).Inc()
}

func (m *Metrics) IncUploadStored() {
	if m == nil {
		return
	}
	m.UploadsStored.Inc()
}

func (m *Metrics) IncUploadRejected(code string) {
	if m == nil {
		return
	}
	m.UploadsRejected.WithLabelValues(code).Inc()
}

func (m *Metrics) IncObjectProcessed(outcome string) {
	if m == nil {
		return
	}
	m.ObjectsProcessed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRecognition(result string, seconds float64) {
	if m == nil {
		return
	}
	m.RecognitionAttempts.WithLabelValues(result).Inc()
	m.RecognitionLatency.Observe(seconds)
}

func (m *Metrics) IncBlockDiscarded(reason string) {
	if m == nil {
		return
	}
	m.BlocksDiscarded.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveCycle(seconds float64) {
	if m == nil {
		return
	}
	m.CycleDuration.Observe(seconds)
}

func (m *Metrics) IncDedupeSkip() {
	if m == nil {
		return
	}
	m.DedupeSkips.Inc()
}

func (m *Metrics) IncIntentDispatched(result string) {
	if m == nil {
		return
	}
	m.IntentsDispatched.WithLabelValues(result).Inc()
}

func (m *Metrics) IncCaptureTrigger(disposition string) {
	if m == nil {
		return
	}
	m.CaptureTriggers.WithLabelValues(disposition).Inc()
}
