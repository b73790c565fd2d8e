package analytics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"TradeLens/pkg/config"
	xhttp "TradeLens/pkg/http"
	"TradeLens/pkg/logger"
)

var (
	// ErrInsufficientData means the service answered but has too little
	// history. It never trips the breaker.
	ErrInsufficientData = errors.New("analytics: insufficient data")
	// ErrUnavailable is returned while the breaker is open.
	ErrUnavailable = errors.New("analytics: service unavailable")
	// ErrNotConfigured is returned when no base URL is set.
	ErrNotConfigured = errors.New("analytics: base url not configured")
)

// HTTPServiceBase is the shared plumbing of every analytics client: base URL,
// JSON transport and one circuit breaker per client.
type HTTPServiceBase struct {
	name    string
	baseURL string
	client  *xhttp.Client
	breaker *gobreaker.CircuitBreaker
	retries int
	log     *logger.Logger
}

// NewHTTPServiceBase builds a client named name with the given request timeout.
func NewHTTPServiceBase(cfg *config.Config, name string, timeout time.Duration, log *logger.Logger) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	b := &HTTPServiceBase{
		name:    name,
		baseURL: strings.TrimRight(cfg.Analytics.BaseURL, "/"),
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithUserAgent("tradelens/1.0")),
		retries: cfg.Analytics.Retries,
		log:     log,
	}

	maxFailures := cfg.Analytics.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 3
	}
	st := gobreaker.Settings{
		Name:     name,
		Interval: cfg.Analytics.Breaker.Interval,
		Timeout:  cfg.Analytics.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("analytics breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	}
	b.breaker = gobreaker.NewCircuitBreaker(st)
	return b
}

// State reports the breaker state.
func (b *HTTPServiceBase) State() gobreaker.State {
	return b.breaker.State()
}

// GetJSON issues GET baseURL+path?query and decodes the body into dest.
// Transport failures are retried up to the configured count.
func (b *HTTPServiceBase) GetJSON(ctx context.Context, path string, query url.Values, dest interface{}) error {
	opts := &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         b.baseURL + path,
		Headers:     map[string]string{"Accept": "application/json"},
		QueryParams: query,
	}
	return b.withRetry(ctx, path, func() error { return b.execute(ctx, opts, dest) })
}

// PostJSON posts payload to baseURL+path and decodes the body into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	opts := &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    b.baseURL + path,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		Body: payload,
	}
	if err := b.execute(ctx, opts, dest); err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

func (b *HTTPServiceBase) execute(ctx context.Context, opts *xhttp.RequestOptions, dest interface{}) error {
	if b.baseURL == "" {
		return ErrNotConfigured
	}
	_, err := b.breaker.Execute(func() (interface{}, error) {
		err := b.client.SendAndParse(ctx, opts, dest)
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.Code == http.StatusUnprocessableEntity {
			return nil, ErrInsufficientData
		}
		return nil, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", b.name, ErrUnavailable)
	}
	return err
}

func (b *HTTPServiceBase) withRetry(ctx context.Context, path string, fn func() error) error {
	var err error
	for i := 0; i <= b.retries; i++ {
		err = fn()
		if err == nil || !retryable(err) {
			break
		}
		select {
		case <-time.After(time.Duration(i+1) * 50 * time.Millisecond):
		case <-ctx.Done():
			return fmt.Errorf("get %s: %w", path, ctx.Err())
		}
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	return nil
}

// countsAsSuccess keeps caller-side outcomes (no data, cancellation, 4xx)
// from tripping the breaker.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, ErrInsufficientData) || errors.Is(err, context.Canceled) {
		return true
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests
	}
	return false
}

func retryable(err error) bool {
	if errors.Is(err, ErrInsufficientData) || errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrNotConfigured) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	return true
}

func elapsedMS(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
