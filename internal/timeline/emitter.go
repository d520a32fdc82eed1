// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package timeline records the ordered progress events of a research run.
// Events carry a monotonically increasing sequence number and the elapsed
// time since the run started, so a consumer can replay the run's shape.
package timeline

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/pkg/types"
)

// Emitter accumulates timeline events for one research request. It is safe
// for concurrent use; sequence numbers and elapsed times are monotone in
// emit order.
type Emitter struct {
	requestID  string
	start      time.Time
	logger     *zap.Logger
	subscriber chan<- types.TimelineEvent

	mu     sync.Mutex
	seq    int
	events []types.TimelineEvent
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithSubscriber streams each event to ch as it is emitted. Delivery never
// blocks emission; events a full channel cannot take are dropped from the
// stream but still recorded.
func WithSubscriber(ch chan<- types.TimelineEvent) Option {
	return func(e *Emitter) { e.subscriber = ch }
}

// NewEmitter starts a timeline for the given request.
func NewEmitter(requestID string, logger *zap.Logger, opts ...Option) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Emitter{
		requestID: requestID,
		start:     time.Now(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit appends one event to the timeline.
func (e *Emitter) Emit(step, message, status string) {
	e.mu.Lock()
	event := types.TimelineEvent{
		RequestID: e.requestID,
		Seq:       e.seq,
		Step:      step,
		Message:   message,
		Elapsed:   time.Since(e.start),
		Status:    status,
	}
	e.seq++
	e.events = append(e.events, event)
	e.mu.Unlock()

	e.logger.Debug("timeline event",
		zap.String("request_id", event.RequestID),
		zap.Int("seq", event.Seq),
		zap.String("step", event.Step),
		zap.String("status", event.Status),
	)

	if e.subscriber != nil {
		select {
		case e.subscriber <- event:
		default:
		}
	}
}

// Sink adapts the emitter to the search connector's event callback.
func (e *Emitter) Sink() func(step, message, status string) {
	return e.Emit
}

// Events returns a copy of the timeline in emit order.
func (e *Emitter) Events() []types.TimelineEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.TimelineEvent, len(e.events))
	copy(out, e.events)
	return out
}

// Elapsed is the time since the run started.
func (e *Emitter) Elapsed() time.Duration {
	return time.Since(e.start)
}
