package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"TradeLens/internal/domain/models"
	domrepo "TradeLens/internal/domain/repository"
	pkgch "TradeLens/pkg/clickhouse"
	applogger "TradeLens/pkg/logger"
)

// CHCandleStore reads and records candles in ClickHouse. It serves as the
// alternate CandleSource when market_data.source is clickhouse.
type CHCandleStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHCandleStore(ch *pkgch.Client, database, table string, l *applogger.Logger) *CHCandleStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHCandleStore{db: ch.DB(), table: database + "." + table, l: l}
}

// LatestCandles returns the newest limit candles in ascending order.
func (s *CHCandleStore) LatestCandles(ctx context.Context, symbol string, tf domrepo.Timeframe, limit int) ([]models.Candle, error) {
	start := time.Now()
	q := fmt.Sprintf(`
		SELECT open_time, open, high, low, close, volume
		FROM %s FINAL
		WHERE symbol = ? AND interval = ?
		ORDER BY open_time DESC
		LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, string(tf), limit)
	if err != nil {
		s.l.Error("clickhouse latest_candles query error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("latest candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, limit)
	for rows.Next() {
		var c models.Candle
		var ts time.Time
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Timestamp = ts.UnixMilli()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	reverse(out)

	s.l.Debug("clickhouse latest_candles ok",
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration", time.Since(start)),
	)
	return out, nil
}

// StoreCandles upserts closed candles. Rows sharing an open time collapse
// on merge.
func (s *CHCandleStore) StoreCandles(ctx context.Context, symbol string, tf domrepo.Timeframe, candles []models.Candle) error {
	const chunkSize = 1000
	for from := 0; from < len(candles); from += chunkSize {
		to := from + chunkSize
		if to > len(candles) {
			to = len(candles)
		}
		q, args := buildCandleInsert(s.table, symbol, tf, candles[from:to])
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store candles: %w", err)
		}
	}
	return nil
}

func buildCandleInsert(table, symbol string, tf domrepo.Timeframe, candles []models.Candle) (string, []interface{}) {
	values := make([]string, 0, len(candles))
	args := make([]interface{}, 0, len(candles)*8)
	for _, c := range candles {
		if c.Timestamp == 0 {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, symbol, string(tf), time.UnixMilli(c.Timestamp).UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	if len(values) == 0 {
		return "", nil
	}
	q := fmt.Sprintf("INSERT INTO %s (symbol, interval, open_time, open, high, low, close, volume) VALUES %s",
		table, strings.Join(values, ","))
	return q, args
}

func reverse(cs []models.Candle) {
	for i, j := 0, len(cs)-1; i < j; i, j = i+1, j-1 {
		cs[i], cs[j] = cs[j], cs[i]
	}
}
