package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"listcart/internal/cart"
	"listcart/internal/pipeline/mocks"
	"listcart/internal/platform/metrics"
	"listcart/internal/recognition"
	"listcart/pkg/domain"
	"listcart/pkg/failure"
	"listcart/pkg/testutil"
)

// fakeCart is the external cart API. It answers 500 for lines in failing.
type fakeCart struct {
	mu      sync.Mutex
	added   []cart.Payload
	failing map[string]bool
}

func (f *fakeCart) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var p cart.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if f.failing[p.LineText] {
		http.Error(w, "internal", http.StatusInternalServerError)
		return
	}
	f.mu.Lock()
	f.added = append(f.added, p)
	f.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
}

func (f *fakeCart) snapshot() []cart.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cart.Payload(nil), f.added...)
}

type ProcessorSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	recognizer *mocks.MockRecognizer
	cart       *fakeCart
	server     *httptest.Server
	metrics    *metrics.Metrics
	processor  *Processor
	ref        domain.ObjectRef
}

func TestProcessorSuite(t *testing.T) {
	suite.Run(t, new(ProcessorSuite))
}

func (s *ProcessorSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.recognizer = mocks.NewMockRecognizer(s.ctrl)
	s.cart = &fakeCart{failing: map[string]bool{}}
	s.server = httptest.NewServer(s.cart)
	s.metrics = metrics.New(prometheus.NewRegistry())

	logger := testutil.DiscardLogger()
	extractor := NewExtractor(s.recognizer, nil, ExtractorConfig{
		Attempts:       3,
		CallTimeout:    20 * time.Millisecond,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}, logger, s.metrics)
	dispatcher := cart.NewHTTPDispatcher(s.server.URL, "", time.Second, logger)
	resolver := NewResolver(dispatcher, ResolverConfig{Threshold: DefaultConfidenceThreshold, Concurrency: 3}, logger, s.metrics)
	s.processor = NewProcessor(extractor, resolver, logger, s.metrics)
	s.ref = domain.ObjectRef{Bucket: "captures", Key: domain.ObjectKey{Subject: "alice", Millis: 1700000000000}}
}

func (s *ProcessorSuite) TearDownTest() {
	s.server.Close()
}

func (s *ProcessorSuite) recognizes(blocks ...recognition.Block) {
	s.recognizer.EXPECT().Recognize(gomock.Any(), s.ref).Return(&recognition.Result{Blocks: blocks}, nil)
}

func (s *ProcessorSuite) TestLineAndWordBlocks() {
	s.recognizes(
		recognition.Block{Text: "mjölk", Kind: recognition.KindLine, Confidence: 95},
		recognition.Block{Text: "mjölk", Kind: recognition.KindWord, Confidence: 95},
	)

	out, err := s.processor.Process(context.Background(), s.ref)
	s.Require().NoError(err)
	s.Equal(OutcomeDispatched, out.Label())
	s.Equal([]cart.Payload{{SubjectID: "alice", LineText: "mjölk"}}, s.cart.snapshot())
}

func (s *ProcessorSuite) TestOnlyLowConfidenceBlock() {
	s.recognizes(recognition.Block{Text: "mjölk", Kind: recognition.KindLine, Confidence: 79.9})

	out, err := s.processor.Process(context.Background(), s.ref)
	s.Require().NoError(err)
	s.Equal(OutcomeEmpty, out.Label())
	s.Empty(s.cart.snapshot())
	s.Equal(1.0, promtest.ToFloat64(s.metrics.ObjectsProcessed.WithLabelValues(OutcomeEmpty)))
}

func (s *ProcessorSuite) TestRecognitionTimesOutOnAllAttempts() {
	s.recognizer.EXPECT().Recognize(gomock.Any(), s.ref).
		DoAndReturn(func(ctx context.Context, _ domain.ObjectRef) (*recognition.Result, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).Times(3)

	out, err := s.processor.Process(context.Background(), s.ref)
	s.Nil(out)
	s.True(failure.Is(err, failure.KindRecognition))
	s.Empty(s.cart.snapshot())
	s.Equal(1.0, promtest.ToFloat64(s.metrics.ObjectsProcessed.WithLabelValues(OutcomeFailed)))
}

func (s *ProcessorSuite) TestOneOfThreeLinesFailsDownstream() {
	s.cart.failing["ost"] = true
	s.recognizes(
		recognition.Block{Text: "mjölk", Kind: recognition.KindLine, Confidence: 95},
		recognition.Block{Text: "ost", Kind: recognition.KindLine, Confidence: 95},
		recognition.Block{Text: "bröd", Kind: recognition.KindLine, Confidence: 95},
	)

	out, err := s.processor.Process(context.Background(), s.ref)
	s.Require().NoError(err)
	s.Equal(OutcomePartial, out.Label())
	s.Equal(1, out.Failed())
	s.ElementsMatch([]cart.Payload{
		{SubjectID: "alice", LineText: "mjölk"},
		{SubjectID: "alice", LineText: "bröd"},
	}, s.cart.snapshot())
	s.True(failure.Is(out.Dispatches[1].Err, failure.KindDispatch))
}

func (s *ProcessorSuite) TestEveryLineFailsDownstream() {
	s.cart.failing["ost"] = true
	s.cart.failing["bröd"] = true
	s.recognizes(
		recognition.Block{Text: "ost", Kind: recognition.KindLine, Confidence: 95},
		recognition.Block{Text: "bröd", Kind: recognition.KindLine, Confidence: 95},
	)

	out, err := s.processor.Process(context.Background(), s.ref)
	s.Require().NoError(err)
	s.Equal(OutcomeFailed, out.Label())
	s.Equal(2, out.Failed())
	s.Empty(s.cart.snapshot())
	s.Equal(1.0, promtest.ToFloat64(s.metrics.ObjectsProcessed.WithLabelValues(OutcomeFailed)))
}

func (s *ProcessorSuite) TestRedeliveryProducesSamePayloads() {
	blocks := []recognition.Block{
		{Text: "kaffe", Kind: recognition.KindLine, Confidence: 88},
		{Text: "te", Kind: recognition.KindLine, Confidence: 92},
	}
	s.recognizer.EXPECT().Recognize(gomock.Any(), s.ref).Return(&recognition.Result{Blocks: blocks}, nil).Times(2)

	first, err := s.processor.Process(context.Background(), s.ref)
	s.Require().NoError(err)
	second, err := s.processor.Process(context.Background(), s.ref)
	s.Require().NoError(err)

	for i := range first.Dispatches {
		s.Equal(first.Dispatches[i].Intent, second.Dispatches[i].Intent)
		s.Equal(first.Dispatches[i].Intent.IdempotencyKey(), second.Dispatches[i].Intent.IdempotencyKey())
	}
}
