// Package engine runs one playback session: it hands the surface and source to
// the player, follows the player's events and reports when the run is over.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/genricoloni/vidcore/internal/domain"
	"go.uber.org/zap"
)

// Player is the part of the transport contract a session drives
type Player interface {
	SurfaceAvailable(surface domain.Surface)
	SurfaceDestroyed()
	SetSource(src domain.Source)
	Play()
	Destroy()
	Options() domain.PlaybackOptions
}

// Dispatcher runs calls on the player's execution context
type Dispatcher interface {
	Do(ctx context.Context, fn func()) error
}

// Session plays one source to completion
type Session struct {
	logger   *zap.Logger
	dispatch Dispatcher
	player   Player
	surface  domain.Surface
	src      domain.Source
	events   <-chan domain.Event

	done     chan struct{}
	doneOnce sync.Once
	mu       sync.Mutex
	err      error
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSession creates a session; events must carry what the player emits
func NewSession(
	logger *zap.Logger,
	dispatch Dispatcher,
	player Player,
	surface domain.Surface,
	src domain.Source,
	events <-chan domain.Event,
) *Session {
	return &Session{
		logger:   logger,
		dispatch: dispatch,
		player:   player,
		surface:  surface,
		src:      src,
		events:   events,
		done:     make(chan struct{}),
	}
}

// Start hands the surface and source to the player and begins following its
// events. It returns immediately (non-blocking).
func (s *Session) Start(ctx context.Context) error {
	s.logger.Info("Session starting", zap.Stringer("source", s.src))

	err := s.dispatch.Do(ctx, func() {
		s.player.SurfaceAvailable(s.surface)
		s.player.SetSource(s.src)
		// A session always plays; autoplay already requested it
		if !s.player.Options().Autoplay {
			s.player.Play()
		}
	})
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(runCtx)
	return nil
}

// runLoop follows player events until the run ends
func (s *Session) runLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Session loop stopped")
			return

		case ev, ok := <-s.events:
			if !ok {
				s.logger.Info("Player events channel closed")
				s.finish(nil)
				return
			}

			switch ev.Name {
			case domain.EventFinished:
				s.logger.Info("Playback finished")
				s.finish(nil)
				return
			case domain.EventError:
				s.finish(ev.Err)
				return
			}
		}
	}
}

func (s *Session) finish(err *domain.EngineError) {
	s.doneOnce.Do(func() {
		if err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		}
		close(s.done)
	})
}

// Done is closed when playback finishes or fails
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the failure that ended the session, if any
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stop destroys the player and waits for the event loop to exit
func (s *Session) Stop(ctx context.Context) error {
	s.logger.Info("Session stopping")

	err := s.dispatch.Do(ctx, func() {
		s.player.SurfaceDestroyed()
		s.player.Destroy()
	})

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.finish(nil)

	if err != nil {
		return fmt.Errorf("failed to stop session: %w", err)
	}
	return nil
}
