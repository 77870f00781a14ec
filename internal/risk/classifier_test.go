package risk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanproof/server/internal/features"
)

func TestHTTPClassifierSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 12, req.Features.MotionCount)

		json.NewEncoder(w).Encode(predictResponse{
			Success:    true,
			Prediction: &ClassifierVerdict{IsHuman: true, RiskScore: 0.2, Confidence: 0.8},
		})
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, time.Second)
	verdict, err := c.Classify(context.Background(), features.FeatureVector{MotionCount: 12})

	require.NoError(t, err)
	assert.True(t, verdict.IsHuman)
	assert.Equal(t, 0.2, verdict.RiskScore)
}

func TestHTTPClassifierServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, time.Second)
	_, err := c.Classify(context.Background(), features.FeatureVector{})

	assert.Error(t, err)
}

func TestHTTPClassifierRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(predictResponse{Success: false, Error: "model not trained yet"})
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, time.Second)
	_, err := c.Classify(context.Background(), features.FeatureVector{})

	assert.Error(t, err)
}

func TestHTTPClassifierTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewHTTPClassifier(srv.URL, 50*time.Millisecond)

	start := time.Now()
	_, err := c.Classify(context.Background(), features.FeatureVector{})

	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second, "timeout must bound the call")
}
