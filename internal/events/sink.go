// Package events provides EventSink implementations for hosts and tests.
package events

import (
	"sync"
	"time"

	"github.com/genricoloni/vidcore/internal/domain"
	"go.uber.org/zap"
)

// LogSink writes every event to a zap logger
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink logging at Info, Error for error events and
// Debug for the high-frequency time updates
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit logs ev with its payload as fields
func (s *LogSink) Emit(ev domain.Event) {
	switch ev.Name {
	case domain.EventError:
		fields := []zap.Field{zap.String("event", string(ev.Name))}
		if ev.Err != nil {
			fields = append(fields,
				zap.String("kind", ev.Err.Kind.String()),
				zap.Int("code", ev.Err.Code),
				zap.Int("extra", ev.Err.Extra),
				zap.String("domain", ev.Err.Domain),
				zap.Error(ev.Err))
		}
		s.logger.Error("Player error", fields...)
	case domain.EventCurrentTimeUpdated:
		s.logger.Debug("Position update", zap.Duration("position", ev.Position))
	case domain.EventSeekComplete:
		s.logger.Info("Player event", zap.String("event", string(ev.Name)), zap.Duration("time", ev.Time))
	case domain.EventVolumeSet:
		s.logger.Info("Player event", zap.String("event", string(ev.Name)), zap.Float64("volume", ev.Volume))
	default:
		s.logger.Info("Player event", zap.String("event", string(ev.Name)))
	}
}

// Fanout forwards each event to every sink in order
type Fanout []domain.EventSink

// Emit forwards ev
func (f Fanout) Emit(ev domain.Event) {
	for _, s := range f {
		s.Emit(ev)
	}
}

// ChannelSink delivers events on a buffered channel without ever blocking
// the player. Events are dropped when the consumer falls behind.
type ChannelSink struct {
	logger          *zap.Logger
	events          chan domain.Event
	mu              sync.Mutex
	closed          bool
	lastDropWarning time.Time
}

// NewChannelSink creates a sink with the given buffer size
func NewChannelSink(logger *zap.Logger, buffer int) *ChannelSink {
	return &ChannelSink{
		logger: logger,
		events: make(chan domain.Event, buffer),
	}
}

// Events returns the receive side of the sink
func (s *ChannelSink) Events() <-chan domain.Event {
	return s.events
}

// Emit enqueues ev, dropping it if the buffer is full
func (s *ChannelSink) Emit(ev domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.events <- ev:
	default:
		s.logDropWarning(ev)
	}
}

// Close closes the channel; later events are discarded
func (s *ChannelSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// logDropWarning is rate limited to one warning per interval; callers hold mu
func (s *ChannelSink) logDropWarning(ev domain.Event) {
	const warningInterval = 5 * time.Second
	now := time.Now()

	if now.Sub(s.lastDropWarning) >= warningInterval {
		s.logger.Warn("Event channel full, dropping events",
			zap.String("event", string(ev.Name)))
		s.lastDropWarning = now
	}
}

// Recorder keeps every event it receives
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit records ev
func (r *Recorder) Emit(ev domain.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of everything recorded
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

// Names returns the recorded event names in order
func (r *Recorder) Names() []domain.EventName {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]domain.EventName, len(r.events))
	for i, ev := range r.events {
		names[i] = ev.Name
	}
	return names
}

// Count returns how many events named name were recorded
func (r *Recorder) Count(name domain.EventName) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, ev := range r.events {
		if ev.Name == name {
			n++
		}
	}
	return n
}

// Last returns the most recent event named name
func (r *Recorder) Last(name domain.EventName) (domain.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Name == name {
			return r.events[i], true
		}
	}
	return domain.Event{}, false
}

// Reset forgets everything recorded so far
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
