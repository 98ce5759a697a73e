// Package playback exposes the transport contract hosts drive a video with.
package playback

import (
	"time"

	"github.com/genricoloni/vidcore/internal/domain"
	"github.com/genricoloni/vidcore/internal/lifecycle"
	"go.uber.org/zap"
)

// State is the host-visible playback state
type State int

const (
	StateIdle State = iota
	StateOpening
	StatePlaying
	StatePaused
	// StateReleased is terminal: the player was destroyed
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "Opening"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateReleased:
		return "Released"
	default:
		return "Idle"
	}
}

// Player is the transport facade over the engine lifecycle.
// Every method must run on the scheduler the player was built with.
type Player struct {
	logger    *zap.Logger
	sink      domain.EventSink
	mgr       *lifecycle.Manager
	destroyed bool
}

// New creates a player. The engine opens once both a source and a surface are set.
func New(logger *zap.Logger, factory domain.EngineFactory, sched domain.Scheduler, sink domain.EventSink, opts domain.PlaybackOptions) *Player {
	return &Player{
		logger: logger,
		sink:   sink,
		mgr:    lifecycle.NewManager(logger, factory, sched, sink, opts),
	}
}

// State derives the transport state from the engine lifecycle
func (p *Player) State() State {
	if p.destroyed {
		return StateReleased
	}

	switch p.mgr.State() {
	case domain.EngineOpening:
		return StateOpening
	case domain.EnginePlaying:
		return StatePlaying
	case domain.EnginePrepared, domain.EnginePaused:
		return StatePaused
	default:
		return StateIdle
	}
}

// Play starts playback now or as soon as the engine is prepared
func (p *Player) Play() {
	if p.destroyed {
		p.logger.Debug("Play ignored, player destroyed")
		return
	}
	p.mgr.StartPlayback()
}

// Pause pauses the engine and emits paused. No-op without a prepared engine.
func (p *Player) Pause() {
	if p.destroyed {
		return
	}
	if p.mgr.PausePlayback() {
		p.sink.Emit(domain.Event{Name: domain.EventPaused})
	}
}

// Stop stops and releases the engine, returning to Idle
func (p *Player) Stop() {
	if p.destroyed {
		return
	}
	if p.mgr.StopPlayback() {
		p.logger.Debug("Playback stopped")
	}
}

// SeekTo seeks now or stores the position for the next prepare
func (p *Player) SeekTo(pos time.Duration) {
	if p.destroyed {
		return
	}
	p.mgr.Seek(pos)
}

// Mute silences or restores the previous volume
func (p *Player) Mute(muted bool) {
	if p.destroyed {
		return
	}
	if !p.mgr.SetMuted(muted) {
		return
	}

	if muted {
		p.sink.Emit(domain.Event{Name: domain.EventMuted})
	} else {
		p.sink.Emit(domain.Event{Name: domain.EventUnmuted})
	}
}

// SetVolume applies a level in [0, 1] and emits volumeSet
func (p *Player) SetVolume(level float64) {
	if p.destroyed {
		return
	}
	if p.mgr.SetVolume(level) {
		p.sink.Emit(domain.Event{Name: domain.EventVolumeSet, Volume: p.mgr.Volume()})
	}
}

// Destroy releases the engine and makes the player permanently inert. Idempotent.
func (p *Player) Destroy() {
	if p.destroyed {
		return
	}
	p.destroyed = true
	p.mgr.Destroy()

	p.logger.Info("Player destroyed")
}

// SetSource replaces the source; playback resumes if it was requested
func (p *Player) SetSource(src domain.Source) {
	if p.destroyed {
		return
	}
	p.mgr.SetSource(src)
}

// SetHeaders changes the request headers of a URL source
func (p *Player) SetHeaders(headers map[string]string) {
	if p.destroyed {
		return
	}
	p.mgr.SetHeaders(headers)
}

// SetLoop toggles looping
func (p *Player) SetLoop(loop bool) {
	if p.destroyed {
		return
	}
	p.mgr.SetLooping(loop)
}

// SetMode selects the orientation layout
func (p *Player) SetMode(o domain.Orientation) {
	if p.destroyed {
		return
	}
	spec := p.mgr.TransformSpec()
	spec.Orientation = o
	p.mgr.SetTransformSpec(spec)
}

// SetFill toggles between fit and fill scaling
func (p *Player) SetFill(fill bool) {
	if p.destroyed {
		return
	}
	spec := p.mgr.TransformSpec()
	spec.Fill = fill
	p.mgr.SetTransformSpec(spec)
}

// SurfaceAvailable hands the player a render target
func (p *Player) SurfaceAvailable(surface domain.Surface) {
	if p.destroyed {
		return
	}
	p.mgr.SurfaceAvailable(surface, surface.Size())
}

// SurfaceSizeChanged reports a resized render target
func (p *Player) SurfaceSizeChanged(size domain.Size) {
	if p.destroyed {
		return
	}
	p.mgr.SurfaceSizeChanged(size)
}

// SurfaceDestroyed reports the render target went away
func (p *Player) SurfaceDestroyed() {
	if p.destroyed {
		return
	}
	p.mgr.SurfaceDestroyed()
}

func (p *Player) CurrentTime() time.Duration      { return p.mgr.Position() }
func (p *Player) Duration() time.Duration         { return p.mgr.Duration() }
func (p *Player) IsPlaying() bool                 { return p.State() == StatePlaying }
func (p *Player) VideoSize() domain.Size          { return p.mgr.ContentSize() }
func (p *Player) Volume() float64                 { return p.mgr.Volume() }
func (p *Player) Muted() bool                     { return p.mgr.Muted() }
func (p *Player) BufferPercent() int              { return p.mgr.BufferPercent() }
func (p *Player) LastError() *domain.EngineError  { return p.mgr.LastError() }
func (p *Player) Source() domain.Source           { return p.mgr.Source() }
func (p *Player) Transform() domain.Transform     { return p.mgr.Transform() }
func (p *Player) Options() domain.PlaybackOptions { return p.mgr.Options() }
