package logger

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher receives aggregated error digests.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval (e.g., 30s)
	CountThreshold int           // max unique entries before flush (e.g., 100)
	Topic          string        // digest topic / event type
	Publisher      Publisher
}

type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector folds identical log lines into counted entries and hands
// the digest to a Publisher on a count threshold or an interval.
type LogCollector struct {
	config  *CollectionConfig
	mutex   sync.Mutex
	logMap  map[string]*AggregatedLogEntry
	batches chan []AggregatedLogEntry
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	if config.TimeInterval <= 0 {
		config.TimeInterval = 30 * time.Second
	}
	if config.CountThreshold <= 0 {
		config.CountThreshold = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &LogCollector{
		config:  config,
		logMap:  make(map[string]*AggregatedLogEntry),
		batches: make(chan []AggregatedLogEntry, 8),
		ctx:     ctx,
		cancel:  cancel,
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := generateKey(level, message, fields, caller)

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if entry, ok := d.logMap[key]; ok {
		entry.Count++
		entry.LastSeen = now
	} else {
		d.logMap[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	if len(d.logMap) >= d.config.CountThreshold {
		d.drainLocked()
	}
}

// Pending returns the number of distinct entries waiting for the next flush.
func (d *LogCollector) Pending() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.logMap)
}

func generateKey(level, message string, fields map[string]interface{}, caller string) string {
	data := struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
		Caller  string                 `json:"caller"`
	}{level, message, fields, caller}
	b, _ := json.Marshal(data)
	return fmt.Sprintf("%x", sha256.Sum256(b))
}

// drainLocked moves the current entries into the publish queue. Digests are
// dropped when the queue is full rather than blocking the logging caller.
func (d *LogCollector) drainLocked() {
	if len(d.logMap) == 0 {
		return
	}
	logs := make([]AggregatedLogEntry, 0, len(d.logMap))
	for _, e := range d.logMap {
		logs = append(logs, *e)
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].FirstSeen.Before(logs[j].FirstSeen) })
	d.logMap = make(map[string]*AggregatedLogEntry)

	select {
	case d.batches <- logs:
	default:
		fmt.Fprintf(os.Stderr, "log digest dropped: %d entries\n", len(logs))
	}
}

func (d *LogCollector) run() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.mutex.Lock()
			d.drainLocked()
			d.mutex.Unlock()
		case logs := <-d.batches:
			d.publish(logs)
		case <-d.ctx.Done():
			d.mutex.Lock()
			d.drainLocked()
			d.mutex.Unlock()
			for {
				select {
				case logs := <-d.batches:
					d.publish(logs)
				default:
					return
				}
			}
		}
	}
}

func (d *LogCollector) publish(logs []AggregatedLogEntry) {
	if d.config.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.config.Publisher.PublishMessage(ctx, d.config.Topic, logs); err != nil {
		fmt.Fprintf(os.Stderr, "failed to publish log digest: %v\n", err)
	}
}

// Close flushes what is left and stops the collector.
func (d *LogCollector) Close() {
	d.cancel()
	d.wg.Wait()
}
