package domain

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"golang.org/x/image/math/f64"
)

// Size is a width/height pair in pixels
type Size struct {
	Width  int
	Height int
}

// IsZero reports whether either dimension is missing
func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Transform is an affine map from content pixel space into surface space.
// The six entries are [a b c; d e f]: x' = a*x + b*y + c, y' = d*x + e*y + f.
type Transform = f64.Aff3

// IdentityTransform leaves content coordinates unchanged
var IdentityTransform = Transform{1, 0, 0, 0, 1, 0}

// SourceKind tags the variant held by a Source
type SourceKind int

const (
	// SourceNone is the zero value: no source configured
	SourceNone SourceKind = iota
	// SourceResource is a media file bundled with the application
	SourceResource
	// SourceFile is a path on the local filesystem
	SourceFile
	// SourceURL is a remote stream, optionally with request headers
	SourceURL
	// SourceNative is a pre-built engine handle passed through untouched
	SourceNative
)

func (k SourceKind) String() string {
	switch k {
	case SourceResource:
		return "resource"
	case SourceFile:
		return "file"
	case SourceURL:
		return "url"
	case SourceNative:
		return "native"
	default:
		return "none"
	}
}

// Source describes what the engine should load. It is immutable once resolved;
// use WithHeaders to derive a copy with different request headers.
type Source struct {
	Kind SourceKind
	// Location is the resource name, file path or URL depending on Kind
	Location string
	// Headers are attached to URL sources as engine request metadata
	Headers map[string]string
	// Native is the opaque handle for SourceNative
	Native any
}

// IsEmpty reports whether no loadable source is configured
func (s Source) IsEmpty() bool {
	switch s.Kind {
	case SourceNone:
		return true
	case SourceNative:
		return s.Native == nil
	default:
		return strings.TrimSpace(s.Location) == ""
	}
}

// WithHeaders returns a copy of the source carrying the given headers
func (s Source) WithHeaders(headers map[string]string) Source {
	s.Headers = maps.Clone(headers)
	return s
}

func (s Source) String() string {
	if s.Kind == SourceNative {
		return fmt.Sprintf("native(%T)", s.Native)
	}
	return fmt.Sprintf("%s(%s)", s.Kind, s.Location)
}

// SurfaceState tracks the rendering surface as reported by the windowing system
type SurfaceState int

const (
	SurfaceAbsent SurfaceState = iota
	SurfaceAvailable
	SurfaceDestroyed
)

func (s SurfaceState) String() string {
	switch s {
	case SurfaceAvailable:
		return "Available"
	case SurfaceDestroyed:
		return "Destroyed"
	default:
		return "Absent"
	}
}

// EngineState is the lifecycle state of the media engine
type EngineState int

const (
	EngineUnopened EngineState = iota
	EngineOpening
	EnginePrepared
	EnginePlaying
	EnginePaused
	EngineFailed
	EngineReleased
)

func (s EngineState) String() string {
	switch s {
	case EngineUnopened:
		return "Unopened"
	case EngineOpening:
		return "Opening"
	case EnginePrepared:
		return "Prepared"
	case EnginePlaying:
		return "Playing"
	case EnginePaused:
		return "Paused"
	case EngineFailed:
		return "Error"
	case EngineReleased:
		return "Released"
	default:
		return "Unknown"
	}
}

// Commandable reports whether transport commands may be sent to the engine
func (s EngineState) Commandable() bool {
	return s == EnginePrepared || s == EnginePlaying || s == EnginePaused
}

// PlaybackIntent records whether the user wants playback to run
type PlaybackIntent int

const (
	IntentIdle PlaybackIntent = iota
	IntentRequested
)

func (i PlaybackIntent) String() string {
	if i == IntentRequested {
		return "Requested"
	}
	return "Idle"
}

// Orientation selects how content is laid out on the surface
type Orientation int

const (
	Portrait Orientation = iota
	// Landscape rotates the content 90 degrees about the surface centre
	Landscape
)

func (o Orientation) String() string {
	if o == Landscape {
		return "LANDSCAPE"
	}
	return "PORTRAIT"
}

// ParseOrientation accepts PORTRAIT or LANDSCAPE in any case
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "PORTRAIT":
		return Portrait, nil
	case "LANDSCAPE":
		return Landscape, nil
	default:
		return Portrait, fmt.Errorf("unknown orientation %q", s)
	}
}

// TransformSpec is the layout intent kept on the component so late size
// changes can recompute the transform
type TransformSpec struct {
	Orientation Orientation
	Fill        bool
}

// PlaybackOptions are the construction-time settings of a player
type PlaybackOptions struct {
	Autoplay           bool
	Loop               bool
	Muted              bool
	Controls           bool
	ObserveCurrentTime bool
	TimeInterval       time.Duration
	Spec               TransformSpec
	Debug              bool
}
