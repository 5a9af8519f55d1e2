package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"listcart/internal/pipeline/mocks"
	"listcart/internal/platform/metrics"
	"listcart/internal/recognition"
	"listcart/pkg/domain"
	"listcart/pkg/failure"
	"listcart/pkg/platform/circuit"
	"listcart/pkg/platform/sentinel"
	"listcart/pkg/testutil"
)

//go:generate mockgen -destination=mocks/mocks.go -package=mocks listcart/internal/pipeline Dispatcher
//go:generate mockgen -destination=mocks/recognizer.go -package=mocks listcart/internal/recognition Recognizer

var (
	_ recognition.Recognizer = (*mocks.MockRecognizer)(nil)
	_ recognition.Recognizer = (*recognition.HTTPClient)(nil)
)

type ExtractorSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	recognizer *mocks.MockRecognizer
	metrics    *metrics.Metrics
	breaker    *circuit.Breaker
	extractor  *Extractor
	ref        domain.ObjectRef
}

func TestExtractorSuite(t *testing.T) {
	suite.Run(t, new(ExtractorSuite))
}

func (s *ExtractorSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.recognizer = mocks.NewMockRecognizer(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.breaker = circuit.New("recognition", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	s.extractor = NewExtractor(s.recognizer, s.breaker, ExtractorConfig{
		Attempts:       3,
		CallTimeout:    20 * time.Millisecond,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}, testutil.DiscardLogger(), s.metrics)
	s.ref = domain.ObjectRef{Bucket: "captures", Key: domain.ObjectKey{Subject: "alice", Millis: 1700000000000}}
}

func (s *ExtractorSuite) TestSuccess() {
	s.recognizer.EXPECT().Recognize(gomock.Any(), s.ref).Return(&recognition.Result{Blocks: []recognition.Block{
		{Text: "mjölk", Kind: recognition.KindLine, Confidence: 95},
	}}, nil)

	res, err := s.extractor.Extract(context.Background(), s.ref)
	s.Require().NoError(err)
	s.Equal(s.ref, res.Ref)
	s.Len(res.Blocks, 1)
	s.Equal(1, promtest.CollectAndCount(s.metrics.RecognitionAttempts))
}

func (s *ExtractorSuite) TestRetriesUnavailableThenSucceeds() {
	gomock.InOrder(
		s.recognizer.EXPECT().Recognize(gomock.Any(), s.ref).Return(nil, sentinel.ErrUnavailable),
		s.recognizer.EXPECT().Recognize(gomock.Any(), s.ref).Return(&recognition.Result{}, nil),
	)

	res, err := s.extractor.Extract(context.Background(), s.ref)
	s.Require().NoError(err)
	s.Empty(res.Blocks)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.RecognitionAttempts.WithLabelValues("unavailable")))
}

func (s *ExtractorSuite) TestTimeoutOnEveryAttemptAborts() {
	s.recognizer.EXPECT().Recognize(gomock.Any(), s.ref).
		DoAndReturn(func(ctx context.Context, _ domain.ObjectRef) (*recognition.Result, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).Times(3)

	res, err := s.extractor.Extract(context.Background(), s.ref)
	s.Nil(res)
	s.True(failure.Is(err, failure.KindRecognition))
	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *ExtractorSuite) TestNonTransientErrorIsNotRetried() {
	s.recognizer.EXPECT().Recognize(gomock.Any(), s.ref).Return(nil, errors.New("status 400: unsupported image")).Times(1)

	_, err := s.extractor.Extract(context.Background(), s.ref)
	s.True(failure.Is(err, failure.KindRecognition))
	s.Contains(err.Error(), "unsupported image")
}

func (s *ExtractorSuite) TestBreakerOpensAndFailsFast() {
	s.recognizer.EXPECT().Recognize(gomock.Any(), s.ref).Return(nil, errors.New("bad request")).Times(2)

	for range 2 {
		_, err := s.extractor.Extract(context.Background(), s.ref)
		s.Require().Error(err)
	}
	s.True(s.breaker.IsOpen())

	_, err := s.extractor.Extract(context.Background(), s.ref)
	s.ErrorIs(err, ErrBreakerOpen)
	s.True(failure.Is(err, failure.KindRecognition))
}

func (s *ExtractorSuite) TestCallerCancellationStopsRetries() {
	ctx, cancel := context.WithCancel(context.Background())
	s.recognizer.EXPECT().Recognize(gomock.Any(), s.ref).
		DoAndReturn(func(context.Context, domain.ObjectRef) (*recognition.Result, error) {
			cancel()
			return nil, sentinel.ErrUnavailable
		}).Times(1)

	_, err := s.extractor.Extract(ctx, s.ref)
	s.ErrorIs(err, context.Canceled)
}
