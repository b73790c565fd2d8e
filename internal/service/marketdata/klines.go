package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"TradeLens/internal/domain/models"
	drepo "TradeLens/internal/domain/repository"
	"TradeLens/internal/service/ratelimit"
	"TradeLens/pkg/config"
	xhttp "TradeLens/pkg/http"
)

const maxKlineLimit = 1000

// ErrMalformedKline is returned when a row is not a usable OHLCV tuple.
var ErrMalformedKline = errors.New("marketdata: malformed kline row")

// KlinesClient reads recent candles from the public klines endpoint.
type KlinesClient struct {
	endpoint string
	host     string
	client   *xhttp.Client
	limiter  *ratelimit.Limiter
}

// NewKlinesClient builds the client. limiter may be shared with other
// callers of the same host.
func NewKlinesClient(cfg *config.Config, limiter *ratelimit.Limiter) *KlinesClient {
	host := cfg.MarketData.KlinesURL
	if u, err := url.Parse(cfg.MarketData.KlinesURL); err == nil && u.Host != "" {
		host = u.Host
	}
	if limiter == nil {
		limiter = ratelimit.New(cfg.MarketData.RPS, cfg.MarketData.Burst)
	}
	return &KlinesClient{
		endpoint: cfg.MarketData.KlinesURL,
		host:     host,
		client:   xhttp.NewClient(xhttp.WithTimeout(cfg.MarketData.RequestTimeout)),
		limiter:  limiter,
	}
}

// LatestCandles implements repository.CandleSource.
func (c *KlinesClient) LatestCandles(ctx context.Context, symbol string, tf drepo.Timeframe, limit int) ([]models.Candle, error) {
	if symbol == "" {
		return nil, fmt.Errorf("klines: empty symbol")
	}
	if !drepo.IsValidTimeframe(tf) {
		return nil, fmt.Errorf("klines: invalid timeframe %q", tf)
	}
	if limit <= 0 || limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	if err := c.limiter.Wait(ctx, c.host); err != nil {
		return nil, fmt.Errorf("klines rate limit: %w", err)
	}

	var body []byte
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.endpoint,
		QueryParams: map[string][]string{
			"symbol":   {strings.ToUpper(symbol)},
			"interval": {string(tf)},
			"limit":    {strconv.Itoa(limit)},
		},
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, tf, err)
	}
	return ParseKlines(body)
}

// ParseKlines maps the exchange array of tuples
// [openTime, open, high, low, close, volume, ...] to candles sorted by time.
// Numeric fields may arrive as JSON numbers or strings.
func ParseKlines(body []byte) ([]models.Candle, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	out := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		c, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })

	// drop duplicate open times, keeping the latest row
	dedup := out[:0]
	for _, c := range out {
		if n := len(dedup); n > 0 && dedup[n-1].Timestamp == c.Timestamp {
			dedup[n-1] = c
			continue
		}
		dedup = append(dedup, c)
	}
	return dedup, nil
}

func parseRow(row []json.RawMessage) (models.Candle, error) {
	if len(row) < 6 {
		return models.Candle{}, ErrMalformedKline
	}
	var vals [6]float64
	for i := 0; i < 6; i++ {
		v, err := number(row[i])
		if err != nil {
			return models.Candle{}, err
		}
		vals[i] = v
	}
	return models.Candle{
		Timestamp: int64(vals[0]),
		Open:      vals[1],
		High:      vals[2],
		Low:       vals[3],
		Close:     vals[4],
		Volume:    vals[5],
	}, nil
}

func number(raw json.RawMessage) (float64, error) {
	s := string(bytes.Trim(bytes.TrimSpace(raw), `"`))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedKline, s)
	}
	return v, nil
}
