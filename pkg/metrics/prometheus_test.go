package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordTier("remote", "ok", 0.2)
	r.RecordTier("remote", "error", 3)
	r.RecordCache("analysis", true)
	r.RecordCache("analysis", false)
	r.RecordCache("analysis", false)
	r.RecordJournalFlush(false, 100)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.tierTotal.WithLabelValues("remote", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheTotal.WithLabelValues("analysis", "miss")))
	assert.Equal(t, 100.0, testutil.ToFloat64(r.journalEvents.WithLabelValues("error")))
}
