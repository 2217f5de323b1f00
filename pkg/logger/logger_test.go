package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_WritesTypedFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, "debug")
	require.NoError(t, err)

	l.With(String("component", "engine")).Info("computed",
		String("ticker", "AAPL"),
		Float64("final_score", 65.47),
		Int("attempt", 2),
		Bool("cached", false),
		Duration("elapsed", 1500*time.Millisecond),
	)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "computed", line["message"])
	assert.Equal(t, "engine", line["component"])
	assert.Equal(t, "AAPL", line["ticker"])
	assert.Equal(t, 65.47, line["final_score"])
	assert.Equal(t, float64(2), line["attempt"])
	assert.Equal(t, false, line["cached"])
	assert.Equal(t, float64(1500), line["elapsed"])
}

func TestNewWithWriter_RejectsBadLevel(t *testing.T) {
	_, err := NewWithWriter(&bytes.Buffer{}, "loud")
	assert.Error(t, err)
}

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestLogCollector_DeduplicatesAndFlushes(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "errors", Publisher: pub})

	c.AddLog("error", "provider failed", map[string]interface{}{"stage": "risk"}, "a.go:1")
	c.AddLog("error", "provider failed", map[string]interface{}{"stage": "risk"}, "a.go:1")
	c.AddLog("error", "provider failed", map[string]interface{}{"stage": "sentiment"}, "a.go:1")
	assert.Equal(t, 2, c.Pending())

	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "errors", pub.topic)
	total := 0
	for _, e := range pub.batches[0] {
		total += e.Count
	}
	assert.Equal(t, 3, total)
}

func TestLogger_ErrorFeedsCollector(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 1, Topic: "errors", Publisher: pub})

	l.Error("cache write failed", Error(errors.New("disk full")))
	l.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "cache write failed", pub.batches[0][0].Message)
	assert.Equal(t, "disk full", pub.batches[0][0].Fields["error"])
}
