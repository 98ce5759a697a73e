package domain

import "time"

//go:generate mockgen -destination=mocks/domain_mock.go -package=mocks github.com/genricoloni/vidcore/internal/domain Engine,EngineFactory,Surface,EventSink

// Engine is the opaque media engine for a single open. Implementations
// deliver asynchronous results through the EngineCallbacks they were
// created with, from any goroutine.
type Engine interface {
	// SetSource supplies what to load. URL headers travel as request
	// metadata; the URL itself is never rewritten.
	SetSource(src Source) error

	// Attach connects the engine to the surface it renders onto
	Attach(surface Surface) error

	// PrepareAsync starts loading; completion arrives as OnPrepared or OnError
	PrepareAsync() error

	Play() error
	Pause() error
	Stop() error

	// SeekTo moves to an absolute position; OnSeekComplete confirms it
	SeekTo(pos time.Duration) error

	// SetVolume sets per-channel gain in [0, 1]
	SetVolume(left, right float64) error

	SetLooping(loop bool) error

	IsPlaying() bool
	CurrentPosition() time.Duration
	Duration() time.Duration

	// Dispose relinquishes all playback resources. The engine is unusable afterwards.
	Dispose() error
}

// EngineCallbacks receives the asynchronous notifications of one engine instance
type EngineCallbacks interface {
	OnPrepared(content Size)
	OnSizeChanged(content Size)
	OnSeekComplete()
	OnCompleted()
	OnError(err *EngineError)
	OnBufferingUpdate(percent int)
}

// EngineFactory builds a fresh engine bound to the given callbacks
type EngineFactory interface {
	NewEngine(cb EngineCallbacks) (Engine, error)
}

// Surface is the render target the engine draws frames onto
type Surface interface {
	// Size returns the current surface dimensions
	Size() Size

	// SetTransform applies the content-to-surface mapping
	SetTransform(t Transform)

	// SetBufferSize sizes the frame buffer to the content dimensions
	SetBufferSize(content Size)
}

// EventSink receives the notifications emitted by the player
type EventSink interface {
	Emit(ev Event)
}

// Scheduler is the single logical execution context all player state lives on
type Scheduler interface {
	// Post queues fn to run on the context
	Post(fn func())

	// Every runs fn on the context at a fixed interval until cancel is called.
	// No invocation of fn starts after cancel returns.
	Every(interval time.Duration, fn func()) (cancel func())
}

// Config defines the interface for application configuration
type Config interface {
	// PlayerOptions returns the playback settings
	PlayerOptions() PlaybackOptions

	// GetSnapshotDir returns the directory for rendered posters
	GetSnapshotDir() string
}
