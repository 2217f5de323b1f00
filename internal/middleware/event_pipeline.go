package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	applogger "MarketPulse/pkg/logger"
)

// ErrBufferFull is returned when an event is dropped because the pipeline is saturated.
var ErrBufferFull = errors.New("event pipeline buffer full")

// batchPublisher is implemented by sinks that can write several results at once.
type batchPublisher interface {
	PublishSignals(ctx context.Context, rs []*models.FinalResult) error
}

type sink struct {
	name string
	pub  domrepo.SignalPublisher
}

// EventPipeline sits between the signal engine and its downstream consumers
// (Kafka, websocket subscribers). It buffers results, flushes them in batches
// and retries a failing sink with backoff without blocking the compute path.
type EventPipeline struct {
	sinks         []sink
	metrics       domrepo.Metrics
	log           *applogger.Logger
	bufSize       int
	maxBatch      int
	flushInterval time.Duration
	maxAttempts   int
	bufCh         chan *models.FinalResult
	stopCh        chan struct{}
	done          chan struct{}
	started       bool
	mu            sync.Mutex
}

var _ domrepo.SignalPublisher = (*EventPipeline)(nil)

type PipelineOption func(*EventPipeline)

// WithBufferSize sets how many results may wait for a flush.
func WithBufferSize(n int) PipelineOption {
	return func(p *EventPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithBatch sets the flush batch size and the maximum time a result waits.
func WithBatch(maxBatch int, interval time.Duration) PipelineOption {
	return func(p *EventPipeline) {
		if maxBatch > 0 {
			p.maxBatch = maxBatch
		}
		if interval > 0 {
			p.flushInterval = interval
		}
	}
}

// WithSink adds a downstream publisher. Sinks receive every result in order.
func WithSink(name string, pub domrepo.SignalPublisher) PipelineOption {
	return func(p *EventPipeline) {
		if pub != nil {
			p.sinks = append(p.sinks, sink{name: name, pub: pub})
		}
	}
}

// WithMaxAttempts bounds delivery attempts per batch and sink.
func WithMaxAttempts(n int) PipelineOption {
	return func(p *EventPipeline) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// NewEventPipeline creates a pipeline; call Start to begin flushing.
func NewEventPipeline(metrics domrepo.Metrics, l *applogger.Logger, opts ...PipelineOption) *EventPipeline {
	p := &EventPipeline{
		metrics:       metrics,
		log:           l,
		bufSize:       1024,
		maxBatch:      100,
		flushInterval: 500 * time.Millisecond,
		maxAttempts:   3,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = applogger.Nop()
	}
	p.bufCh = make(chan *models.FinalResult, p.bufSize)
	return p
}

// Start launches background flushing. It is a no-op when already started.
func (p *EventPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.run(ctx)
}

// PublishSignal enqueues r without blocking.
func (p *EventPipeline) PublishSignal(_ context.Context, r *models.FinalResult) error {
	if r == nil {
		return fmt.Errorf("nil result")
	}
	if len(p.sinks) == 0 {
		return nil
	}
	select {
	case p.bufCh <- r:
		p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
		return nil
	default:
		p.metrics.RecordError("pipeline_buffer_full")
		return ErrBufferFull
	}
}

// Close stops the pipeline after flushing whatever is buffered.
func (p *EventPipeline) Close() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	p.mu.Unlock()

	close(p.stopCh)
	<-p.done
	return nil
}

func (p *EventPipeline) run(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	batch := make([]*models.FinalResult, 0, p.maxBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		p.deliver(ctx, batch)
		batch = make([]*models.FinalResult, 0, p.maxBatch)
	}

	for {
		select {
		case <-p.stopCh:
			for {
				select {
				case r := <-p.bufCh:
					batch = append(batch, r)
					if len(batch) >= p.maxBatch {
						flush()
					}
				default:
					flush()
					return
				}
			}
		case r := <-p.bufCh:
			batch = append(batch, r)
			if len(batch) >= p.maxBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (p *EventPipeline) deliver(ctx context.Context, batch []*models.FinalResult) {
	start := time.Now()
	for _, s := range p.sinks {
		backoff := 50 * time.Millisecond
		var err error
		for attempt := 1; attempt <= p.maxAttempts; attempt++ {
			if err = publishTo(ctx, s.pub, batch); err == nil {
				break
			}
			p.metrics.RecordError("pipeline_flush")
			if attempt == p.maxAttempts || ctx.Err() != nil {
				break
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			if backoff < 2*time.Second {
				backoff *= 2
			}
		}
		if err != nil {
			p.metrics.RecordError("pipeline_drop")
			p.log.Warn("signal events dropped",
				applogger.String("sink", s.name),
				applogger.Int("count", len(batch)),
				applogger.Error(err),
			)
		}
	}
	p.metrics.RecordLatency("pipeline_flush", time.Since(start).Seconds())
}

func publishTo(ctx context.Context, pub domrepo.SignalPublisher, batch []*models.FinalResult) error {
	if bp, ok := pub.(batchPublisher); ok {
		return bp.PublishSignals(ctx, batch)
	}
	for _, r := range batch {
		if err := pub.PublishSignal(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
