// Package lifecycle owns the media engine: opening it once both a source and
// a surface are available, reacting to its callbacks and releasing it.
package lifecycle

import (
	"fmt"
	"maps"
	"time"

	"github.com/genricoloni/vidcore/internal/domain"
	"github.com/genricoloni/vidcore/internal/geometry"
	"github.com/genricoloni/vidcore/internal/timeobserver"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

// Manager reconciles surface readiness with engine readiness.
// All methods must be called on the scheduler's context.
type Manager struct {
	logger   *zap.Logger
	factory  domain.EngineFactory
	sched    domain.Scheduler
	sink     domain.EventSink
	observer *timeobserver.Observer
	opts     domain.PlaybackOptions

	source       domain.Source
	surface      domain.Surface
	surfaceState domain.SurfaceState
	surfaceSize  domain.Size

	engine      domain.Engine
	token       uuid.UUID // identity of the current engine; uuid.Nil when none
	state       domain.EngineState
	contentSize domain.Size
	spec        domain.TransformSpec
	transform   domain.Transform

	intent       domain.PlaybackIntent
	pendingSeek  mo.Option[time.Duration]
	seekTarget   time.Duration
	readyEmitted bool
	finished     bool
	lastErr      *domain.EngineError
	timeHandle   *timeobserver.Handle

	volume        float64
	muted         bool
	bufferPercent int
}

// NewManager creates a manager with no source and no surface
func NewManager(logger *zap.Logger, factory domain.EngineFactory, sched domain.Scheduler, sink domain.EventSink, opts domain.PlaybackOptions) *Manager {
	if !opts.Debug {
		logger = logger.WithOptions(zap.IncreaseLevel(zap.InfoLevel))
	}

	m := &Manager{
		logger:    logger,
		factory:   factory,
		sched:     sched,
		sink:      sink,
		observer:  timeobserver.New(logger, sched, sink),
		opts:      opts,
		spec:      opts.Spec,
		transform: domain.IdentityTransform,
		volume:    1,
		muted:     opts.Muted,
	}
	if opts.Autoplay {
		m.intent = domain.IntentRequested
	}
	return m
}

// SetSource replaces the source and reopens. An empty source releases the engine.
func (m *Manager) SetSource(src domain.Source) {
	m.source = src

	if src.IsEmpty() {
		m.logger.Debug("Source cleared")
		m.Release()
		return
	}

	m.logger.Info("Source set", zap.Stringer("source", src))
	m.Open()
}

// SetHeaders attaches request headers to the current source, reopening if they changed
func (m *Manager) SetHeaders(headers map[string]string) {
	if maps.Equal(headers, m.source.Headers) {
		return
	}
	m.source = m.source.WithHeaders(headers)

	if !m.source.IsEmpty() {
		m.logger.Debug("Headers changed, reopening", zap.Int("count", len(headers)))
		m.Open()
	}
}

// SurfaceAvailable records a usable surface and opens the engine if a source is waiting
func (m *Manager) SurfaceAvailable(surface domain.Surface, size domain.Size) {
	previous := m.surface
	m.surface = surface
	m.surfaceState = domain.SurfaceAvailable
	m.surfaceSize = size

	m.logger.Debug("Surface available", zap.Stringer("size", size))

	if m.engine == nil {
		m.Open()
		return
	}

	if surface != previous {
		if err := m.engine.Attach(surface); err != nil {
			m.fail(domain.AsEngineError(domain.EngineRuntimeError, fmt.Errorf("failed to attach surface: %w", err)))
			return
		}
		if !m.contentSize.IsZero() {
			surface.SetBufferSize(m.contentSize)
		}
	}
	m.applyTransform()
}

// SurfaceSizeChanged recomputes the transform for the new surface size
func (m *Manager) SurfaceSizeChanged(size domain.Size) {
	m.surfaceSize = size
	m.applyTransform()
}

// SurfaceDestroyed forces a release. Intent is kept so playback resumes
// once the surface comes back.
func (m *Manager) SurfaceDestroyed() {
	m.logger.Debug("Surface destroyed", zap.Stringer("engineState", m.state))

	m.Release()
	m.surface = nil
	m.surfaceState = domain.SurfaceDestroyed
}

// Open releases any current engine and starts preparing a new one.
// It is a no-op without a source or an available surface.
func (m *Manager) Open() {
	if m.source.IsEmpty() {
		m.logger.Debug("Open skipped, no source")
		return
	}
	if m.surfaceState != domain.SurfaceAvailable || m.surface == nil {
		m.logger.Debug("Open deferred until surface is available")
		return
	}

	m.Release()

	m.token = uuid.New()
	m.state = domain.EngineOpening
	m.contentSize = domain.Size{}
	m.seekTarget = 0
	m.readyEmitted = false
	m.finished = false
	m.lastErr = nil
	m.bufferPercent = 0

	m.logger.Info("Opening engine",
		zap.Stringer("source", m.source),
		zap.Stringer("token", m.token))

	if err := m.configure(); err != nil {
		m.fail(domain.AsEngineError(domain.EngineOpenError, err))
	}
}

// configure builds and prepares the engine, converting panics into errors
func (m *Manager) configure() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panicked during open: %v", r)
		}
	}()

	engine, err := m.factory.NewEngine(newEngineObserver(m, m.token, m.sched))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	m.engine = engine

	if err := engine.SetSource(m.source); err != nil {
		return fmt.Errorf("failed to set source: %w", err)
	}
	if err := engine.Attach(m.surface); err != nil {
		return fmt.Errorf("failed to attach surface: %w", err)
	}
	if err := engine.SetLooping(m.opts.Loop); err != nil {
		return fmt.Errorf("failed to set looping: %w", err)
	}
	if err := engine.PrepareAsync(); err != nil {
		return fmt.Errorf("failed to prepare: %w", err)
	}
	return nil
}

// Release stops observation and disposes the engine. Idempotent.
func (m *Manager) Release() {
	if m.engine == nil {
		return
	}

	m.stopObserver()

	engine := m.engine
	m.engine = nil
	m.token = uuid.Nil
	m.state = domain.EngineReleased

	if err := engine.Dispose(); err != nil {
		m.logger.Warn("Failed to dispose engine", zap.Error(err))
	}
	m.logger.Debug("Engine released")
}

// Destroy releases everything and forgets the source and surface
func (m *Manager) Destroy() {
	m.Release()

	m.source = domain.Source{}
	m.surface = nil
	m.surfaceState = domain.SurfaceAbsent
	m.intent = domain.IntentIdle
	m.pendingSeek = mo.None[time.Duration]()
}

// StartPlayback records the intent to play and honours it now or once prepared
func (m *Manager) StartPlayback() {
	m.intent = domain.IntentRequested

	switch {
	case m.state == domain.EnginePlaying:
	case m.state.Commandable():
		m.startEngine()
	case m.state == domain.EngineOpening:
		m.logger.Debug("Play deferred until prepared")
	default:
		m.Open()
	}
}

// PausePlayback clears the intent and pauses a commandable engine.
// Without an engine it changes nothing. It reports whether the engine was paused.
func (m *Manager) PausePlayback() bool {
	if m.engine == nil {
		return false
	}
	m.intent = domain.IntentIdle

	if !m.state.Commandable() {
		return false
	}

	m.stopObserver()
	if m.state == domain.EnginePlaying {
		if err := m.engine.Pause(); err != nil {
			m.fail(domain.AsEngineError(domain.EngineRuntimeError, err))
			return false
		}
	}
	m.state = domain.EnginePaused
	return true
}

// StopPlayback stops and releases the engine. It reports whether an engine existed.
func (m *Manager) StopPlayback() bool {
	if m.engine == nil {
		return false
	}
	m.intent = domain.IntentIdle

	m.stopObserver()
	if m.state.Commandable() {
		if err := m.engine.Stop(); err != nil {
			m.logger.Warn("Failed to stop engine", zap.Error(err))
		}
	}
	m.Release()
	return true
}

// Seek moves to pos now, or remembers it for the next prepare
func (m *Manager) Seek(pos time.Duration) {
	if pos < 0 {
		pos = 0
	}

	if m.state.Commandable() {
		m.pendingSeek = mo.None[time.Duration]()
		m.seekEngine(pos)
		return
	}

	m.logger.Debug("Seek stored as pending", zap.Duration("position", pos))
	m.pendingSeek = mo.Some(pos)
}

// SetVolume stores a level in [0, 1] and unmutes. It reports whether the
// engine received it.
func (m *Manager) SetVolume(level float64) bool {
	m.volume = lo.Clamp(level, 0, 1)
	m.muted = false

	if !m.state.Commandable() {
		return false
	}
	m.applyVolume()
	return true
}

// SetMuted stores the mute flag. It reports whether the engine received it.
func (m *Manager) SetMuted(muted bool) bool {
	m.muted = muted

	if !m.state.Commandable() {
		return false
	}
	m.applyVolume()
	return true
}

// SetLooping updates the loop option on the current and future engines
func (m *Manager) SetLooping(loop bool) {
	m.opts.Loop = loop

	if m.engine == nil || m.state == domain.EngineFailed {
		return
	}
	if err := m.engine.SetLooping(loop); err != nil {
		m.logger.Warn("Failed to set looping", zap.Error(err))
	}
}

// SetTransformSpec changes the layout and reapplies the transform
func (m *Manager) SetTransformSpec(spec domain.TransformSpec) {
	m.spec = spec
	m.applyTransform()
}

func (m *Manager) State() domain.EngineState             { return m.state }
func (m *Manager) Intent() domain.PlaybackIntent         { return m.intent }
func (m *Manager) PendingSeek() mo.Option[time.Duration] { return m.pendingSeek }
func (m *Manager) HasEngine() bool                       { return m.engine != nil }
func (m *Manager) ContentSize() domain.Size              { return m.contentSize }
func (m *Manager) Transform() domain.Transform           { return m.transform }
func (m *Manager) TransformSpec() domain.TransformSpec   { return m.spec }
func (m *Manager) Source() domain.Source                 { return m.source }
func (m *Manager) SurfaceState() domain.SurfaceState     { return m.surfaceState }
func (m *Manager) LastError() *domain.EngineError        { return m.lastErr }
func (m *Manager) Volume() float64                       { return m.volume }
func (m *Manager) Muted() bool                           { return m.muted }
func (m *Manager) BufferPercent() int                    { return m.bufferPercent }
func (m *Manager) Finished() bool                        { return m.finished }
func (m *Manager) ObservingTime() bool                   { return m.timeHandle.Active() }
func (m *Manager) Options() domain.PlaybackOptions       { return m.opts }

// Position returns the engine position, or the last observed one without an engine
func (m *Manager) Position() time.Duration {
	if m.state.Commandable() {
		return m.engine.CurrentPosition()
	}
	return m.timeHandle.Last()
}

// Duration returns the content duration once prepared
func (m *Manager) Duration() time.Duration {
	if m.state.Commandable() {
		return m.engine.Duration()
	}
	return 0
}

func (m *Manager) startEngine() {
	if m.finished {
		m.finished = false
		m.seekEngine(0)
	}

	if err := m.engine.Play(); err != nil {
		m.fail(domain.AsEngineError(domain.EngineRuntimeError, err))
		return
	}
	m.state = domain.EnginePlaying
	m.startObserver()

	m.logger.Debug("Playback started")
	m.sink.Emit(domain.Event{Name: domain.EventPlaybackStart})
}

func (m *Manager) seekEngine(pos time.Duration) {
	m.seekTarget = pos
	m.finished = false

	if err := m.engine.SeekTo(pos); err != nil {
		m.logger.Warn("Seek failed", zap.Duration("position", pos), zap.Error(err))
	}
}

func (m *Manager) applyVolume() {
	level := m.volume
	if m.muted {
		level = 0
	}
	if err := m.engine.SetVolume(level, level); err != nil {
		m.logger.Warn("Failed to set volume", zap.Float64("level", level), zap.Error(err))
	}
}

// applyTransform pushes the current geometry to the surface once content size is known
func (m *Manager) applyTransform() {
	if m.surface == nil || m.contentSize.IsZero() || m.surfaceSize.IsZero() {
		return
	}

	m.transform = geometry.ComputeTransform(m.surfaceSize, m.contentSize, m.spec)
	m.surface.SetTransform(m.transform)

	m.logger.Debug("Transform applied",
		zap.Stringer("surface", m.surfaceSize),
		zap.Stringer("content", m.contentSize),
		zap.Float64("scale", geometry.Scale(m.transform)))
}

func (m *Manager) startObserver() {
	if !m.opts.ObserveCurrentTime || m.timeHandle.Active() {
		return
	}
	m.timeHandle = m.observer.Start(m.opts.TimeInterval, m.engine)
}

func (m *Manager) stopObserver() {
	m.observer.Stop(m.timeHandle)
}

// fail moves to Error and reports err once. The engine is kept for inspection.
func (m *Manager) fail(err *domain.EngineError) {
	m.stopObserver()
	m.state = domain.EngineFailed
	m.lastErr = err

	m.logger.Error("Engine error", zap.Stringer("kind", err.Kind), zap.Error(err))
	m.sink.Emit(domain.Event{Name: domain.EventError, Err: err})
}

func (m *Manager) handlePrepared(content domain.Size) {
	if m.state != domain.EngineOpening {
		m.logger.Debug("Ignoring prepared outside of opening", zap.Stringer("state", m.state))
		return
	}

	m.state = domain.EnginePrepared
	m.contentSize = content
	m.logger.Info("Engine prepared", zap.Stringer("content", content))

	if !content.IsZero() {
		m.surface.SetBufferSize(content)
	}
	m.applyTransform()
	m.applyVolume()

	if pos, ok := m.pendingSeek.Get(); ok {
		m.pendingSeek = mo.None[time.Duration]()
		if pos > 0 {
			m.seekEngine(pos)
		}
	}

	if m.intent == domain.IntentRequested {
		m.startEngine()
		if m.state == domain.EngineFailed {
			return
		}
	}

	if !m.readyEmitted {
		m.readyEmitted = true
		m.sink.Emit(domain.Event{Name: domain.EventReady})
	}
}

func (m *Manager) handleSizeChanged(content domain.Size) {
	if content.IsZero() || content == m.contentSize {
		return
	}
	m.contentSize = content
	if m.surface != nil {
		m.surface.SetBufferSize(content)
	}
	m.applyTransform()
}

func (m *Manager) handleSeekComplete() {
	m.sink.Emit(domain.Event{Name: domain.EventSeekComplete, Time: m.seekTarget})
}

func (m *Manager) handleCompleted() {
	if !m.state.Commandable() {
		return
	}

	m.stopObserver()
	m.state = domain.EnginePaused
	m.intent = domain.IntentIdle
	m.finished = true

	m.logger.Info("Playback finished")
	m.sink.Emit(domain.Event{Name: domain.EventFinished})
}

func (m *Manager) handleError(err *domain.EngineError) {
	if m.state == domain.EngineFailed {
		m.logger.Debug("Ignoring error while already failed", zap.Error(err))
		return
	}
	m.fail(err)
}

func (m *Manager) handleBuffering(percent int) {
	m.bufferPercent = lo.Clamp(percent, 0, 100)
}
