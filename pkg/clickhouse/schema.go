package clickhouse

import "fmt"

// CandleSchema returns the statements that create the candle table read by
// the alternate candle source.
func CandleSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			symbol String,
			interval LowCardinality(String),
			open_time DateTime64(3),
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			volume Float64
		) ENGINE = ReplacingMergeTree
		ORDER BY (symbol, interval, open_time)`, database, table),
	}
}
