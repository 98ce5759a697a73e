// Package timeobserver reports playback position at a fixed interval while playing.
package timeobserver

import (
	"time"

	"github.com/genricoloni/vidcore/internal/domain"
	"go.uber.org/zap"
)

// DefaultInterval matches the polling rate hosts expect for progress bars
const DefaultInterval = 500 * time.Millisecond

// PositionProvider is the slice of the engine the observer reads from
type PositionProvider interface {
	IsPlaying() bool
	CurrentPosition() time.Duration
}

// Handle is the cancellation token of one running observation
type Handle struct {
	provider PositionProvider
	cancel   func()
	last     time.Duration
	active   bool
}

// Active reports whether the observation is still running
func (h *Handle) Active() bool {
	return h != nil && h.active
}

// Last returns the most recent position reported
func (h *Handle) Last() time.Duration {
	if h == nil {
		return 0
	}
	return h.last
}

// Observer emits currentTimeUpdated events on the scheduler's context
type Observer struct {
	logger *zap.Logger
	sched  domain.Scheduler
	sink   domain.EventSink
}

// New creates an observer emitting to sink
func New(logger *zap.Logger, sched domain.Scheduler, sink domain.EventSink) *Observer {
	return &Observer{
		logger: logger,
		sched:  sched,
		sink:   sink,
	}
}

// Start begins polling p every interval. Callers must Stop the previous
// handle first; the observer does not track handles itself.
func (o *Observer) Start(interval time.Duration, p PositionProvider) *Handle {
	if interval <= 0 {
		interval = DefaultInterval
	}

	h := &Handle{provider: p, active: true}
	h.cancel = o.sched.Every(interval, func() { o.tick(h) })

	o.logger.Debug("Time observer started", zap.Duration("interval", interval))
	return h
}

// Stop cancels h and emits a final position. Safe on nil or stopped handles.
func (o *Observer) Stop(h *Handle) {
	if !h.Active() {
		return
	}

	h.active = false
	h.cancel()

	h.last = h.provider.CurrentPosition()
	o.sink.Emit(domain.Event{Name: domain.EventCurrentTimeUpdated, Position: h.last})

	o.logger.Debug("Time observer stopped", zap.Duration("position", h.last))
}

func (o *Observer) tick(h *Handle) {
	if !h.active {
		return
	}
	// Not playing is transient (buffering, seeking); only Stop ends observation
	if !h.provider.IsPlaying() {
		return
	}

	h.last = h.provider.CurrentPosition()
	o.sink.Emit(domain.Event{Name: domain.EventCurrentTimeUpdated, Position: h.last})
}
