package recognition

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listcart/pkg/domain"
	"listcart/pkg/platform/sentinel"
	"listcart/pkg/testutil"
)

type fixedPresigner string

func (p fixedPresigner) PresignGet(domain.ObjectRef, time.Duration) (string, error) {
	return string(p), nil
}

func testRef(t *testing.T) domain.ObjectRef {
	t.Helper()
	ref, err := domain.ParseObjectRef("captures", "alice/1700000000000.jpg")
	require.NoError(t, err)
	return ref
}

func TestHTTPClient_Recognize(t *testing.T) {
	var got recognizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/recognize", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"blocks":[
			{"text":"mjölk","blockType":"LINE","confidence":95},
			{"text":"mjölk","blockType":"word","confidence":95},
			{"text":"page","blockType":"PAGE","confidence":99}
		]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "k", fixedPresigner("http://store/get"), testutil.DiscardLogger())
	res, err := c.Recognize(context.Background(), testRef(t))
	require.NoError(t, err)

	assert.Equal(t, recognizeRequest{Bucket: "captures", Key: "alice/1700000000000.jpg", URL: "http://store/get"}, got)
	assert.Equal(t, []Block{
		{Text: "mjölk", Kind: KindLine, Confidence: 95},
		{Text: "mjölk", Kind: KindWord, Confidence: 95},
		{Text: "page", Kind: KindPage, Confidence: 99},
	}, res.Blocks)
}

func TestHTTPClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadRequest, false},
		{http.StatusForbidden, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := NewHTTPClient(srv.URL, "", nil, testutil.DiscardLogger()).Recognize(context.Background(), testRef(t))
			require.Error(t, err)
			assert.Equal(t, tt.transient, isUnavailable(err))
		})
	}
}

func TestHTTPClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewHTTPClient(srv.URL, "", nil, testutil.DiscardLogger()).Recognize(ctx, testRef(t))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPClient(url, "", nil, testutil.DiscardLogger()).Recognize(context.Background(), testRef(t))
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestHTTPClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"blocks":`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, "", nil, testutil.DiscardLogger()).Recognize(context.Background(), testRef(t))
	require.Error(t, err)
	assert.False(t, isUnavailable(err))
}

func isUnavailable(err error) bool {
	return err != nil && errors.Is(err, sentinel.ErrUnavailable)
}
