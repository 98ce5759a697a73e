package domain

import (
	"errors"
	"fmt"
	"time"
)

// EventName identifies a notification sent to the host
type EventName string

const (
	EventError              EventName = "error"
	EventReady              EventName = "ready"
	EventPlaybackStart      EventName = "playbackStart"
	EventSeekComplete       EventName = "seekComplete"
	EventCurrentTimeUpdated EventName = "currentTimeUpdated"
	EventFinished           EventName = "finished"
	EventMuted              EventName = "muted"
	EventUnmuted            EventName = "unmuted"
	EventPaused             EventName = "paused"
	EventVolumeSet          EventName = "volumeSet"
)

// Event is a single notification with its structured payload.
// Only the fields relevant to Name are populated.
type Event struct {
	Name EventName
	// Position is the playback position for currentTimeUpdated
	Position time.Duration
	// Time is the seek target for seekComplete
	Time time.Duration
	// Volume is the applied level for volumeSet
	Volume float64
	// Err is set for error events
	Err *EngineError
}

// ErrorKind classifies failures surfaced by the player
type ErrorKind int

const (
	// ConfigurationError is an invalid or empty source, rejected before any engine exists
	ConfigurationError ErrorKind = iota
	// EngineOpenError is a failure while constructing or configuring the engine
	EngineOpenError
	// EngineRuntimeError is an asynchronous error reported by an open engine
	EngineRuntimeError
	// ResourceContention is the surface going away mid-open; handled as a release
	ResourceContention
)

func (k ErrorKind) String() string {
	switch k {
	case ConfigurationError:
		return "configuration"
	case EngineOpenError:
		return "engine-open"
	case EngineRuntimeError:
		return "engine-runtime"
	case ResourceContention:
		return "resource-contention"
	default:
		return "unknown"
	}
}

// EngineError carries the cause of a failure plus whatever platform
// diagnostics the engine supplied
type EngineError struct {
	Kind ErrorKind
	// Code and Extra mirror the (what, extra) pair some engines report
	Code  int
	Extra int
	// Domain names the subsystem that produced Code, when known
	Domain string
	Err    error
}

func (e *EngineError) Error() string {
	msg := e.Kind.String() + " error"
	if e.Domain != "" || e.Code != 0 {
		msg += fmt.Sprintf(" (domain=%s code=%d extra=%d)", e.Domain, e.Code, e.Extra)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// AsEngineError wraps err with the given kind unless it already is an EngineError
func AsEngineError(kind ErrorKind, err error) *EngineError {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee
	}
	return &EngineError{Kind: kind, Err: err}
}
