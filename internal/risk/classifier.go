package risk

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/humanproof/server/internal/features"
)

// Classifier asks an external model whether a feature vector looks human.
// Implementations must honor the context deadline; the caller treats every
// error as "unavailable" and falls back.
type Classifier interface {
	Classify(ctx context.Context, f features.FeatureVector) (*ClassifierVerdict, error)
}

// HTTPClassifier talks to the ML scoring service over HTTP. Calls are bounded
// by a per-call timeout, retried once with exponential backoff inside that
// budget, and guarded by a circuit breaker so a dead service costs one state
// check instead of a timeout per session.
type HTTPClassifier struct {
	url     string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*ClassifierVerdict]
	log     *logrus.Entry
}

// NewHTTPClassifier creates a client for the given predict endpoint.
func NewHTTPClassifier(url string, timeout time.Duration) *HTTPClassifier {
	breaker := gobreaker.NewCircuitBreaker[*ClassifierVerdict](gobreaker.Settings{
		Name:        "ml-classifier",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.TotalFailures*2 > counts.Requests
		},
	})

	return &HTTPClassifier{
		url:     url,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		log:     logrus.WithField("component", "classifier"),
	}
}

type predictRequest struct {
	Features features.FeatureVector `json:"features"`
}

type predictResponse struct {
	Success    bool               `json:"success"`
	Error      string             `json:"error,omitempty"`
	Prediction *ClassifierVerdict `json:"prediction,omitempty"`
}

// Classify posts the feature vector to the model service.
func (c *HTTPClassifier) Classify(ctx context.Context, f features.FeatureVector) (*ClassifierVerdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.breaker.Execute(func() (*ClassifierVerdict, error) {
		op := func() (*ClassifierVerdict, error) {
			return c.predict(ctx, f)
		}
		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), ctx)
		return backoff.RetryWithData(op, policy)
	})
}

func (c *HTTPClassifier) predict(ctx context.Context, f features.FeatureVector) (*ClassifierVerdict, error) {
	body, err := json.Marshal(predictRequest{Features: f})
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if !out.Success || out.Prediction == nil {
		return nil, fmt.Errorf("classifier rejected request: %s", out.Error)
	}

	return out.Prediction, nil
}
