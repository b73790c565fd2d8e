package clickhouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(ClientConfig{
		Host:        "ch",
		Port:        9000,
		Database:    "tradelens",
		User:        "default",
		DialTimeout: 5 * time.Second,
		MaxExecTime: 30 * time.Second,
	})
	assert.Equal(t, "clickhouse://default:@ch:9000/tradelens?dial_timeout=5s&max_execution_time=30", dsn)

	dsn = buildDSN(ClientConfig{Host: "ch", Port: 8123, Database: "db", UseHTTP: true})
	assert.Equal(t, "clickhouse+http://:@ch:8123/db", dsn)
}

func TestCandleSchema(t *testing.T) {
	stmts := CandleSchema("tradelens", "candles")
	assert.Len(t, stmts, 2)
	assert.Contains(t, stmts[1], "tradelens.candles")
}
