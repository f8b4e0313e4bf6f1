package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// FeedFetcher pulls the daily projections CSV from a remote feed. The feed
// provider is rate limited and flaky enough to warrant breaker protection.
type FeedFetcher struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *logrus.Logger
}

func NewFeedFetcher(url string, timeout time.Duration, threshold int, perMinute int, logger *logrus.Logger) *FeedFetcher {
	settings := gobreaker.Settings{
		Name:        "csv-feed",
		MaxRequests: uint32(threshold),
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"component": "circuit_breaker",
				"service":   name,
				"from":      from.String(),
				"to":        to.String(),
			}).Info("Circuit breaker state changed")
		},
	}

	return &FeedFetcher{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(max(perMinute, 1))), 1),
		logger:  logger,
	}
}

// FetchDaily downloads today's CSV. The returned date tags the ingested rows.
func (f *FeedFetcher) FetchDaily(ctx context.Context) (io.ReadCloser, string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("feed rate limit wait: %w", err)
	}

	result, err := f.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/csv")

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
		}
		return resp.Body, nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("feed fetch failed: %w", err)
	}

	f.logger.WithField("url", f.url).Debug("Daily feed fetched")
	return result.(io.ReadCloser), time.Now().Format("2006-01-02"), nil
}

// State exposes the breaker state for the status endpoint.
func (f *FeedFetcher) State() gobreaker.State {
	return f.breaker.State()
}
