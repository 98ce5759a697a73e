package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/genricoloni/vidcore/internal/domain"
	"github.com/genricoloni/vidcore/internal/domain/mocks"
	"github.com/genricoloni/vidcore/internal/events"
	"github.com/genricoloni/vidcore/internal/geometry"
	"github.com/genricoloni/vidcore/internal/loop"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

var (
	surfaceSize = domain.Size{Width: 1920, Height: 1080}
	contentSize = domain.Size{Width: 1280, Height: 720}
	testSource  = domain.Source{Kind: domain.SourceFile, Location: "/tmp/clip.mp4"}
)

// harness wires a Manager to mocks and a manually driven scheduler
type harness struct {
	t       *testing.T
	ctrl    *gomock.Controller
	sched   *loop.Manual
	rec     *events.Recorder
	factory *mocks.MockEngineFactory
	surface *mocks.MockSurface
	mgr     *Manager
	cb      domain.EngineCallbacks
}

func newHarness(t *testing.T, opts domain.PlaybackOptions) *harness {
	ctrl := gomock.NewController(t)
	h := &harness{
		t:       t,
		ctrl:    ctrl,
		sched:   loop.NewManual(),
		rec:     events.NewRecorder(),
		factory: mocks.NewMockEngineFactory(ctrl),
		surface: mocks.NewMockSurface(ctrl),
	}
	h.mgr = NewManager(zap.NewNop(), h.factory, h.sched, h.rec, opts)
	return h
}

// expectOpen prepares the factory to hand out a fresh engine that accepts
// the configuration sequence of an open
func (h *harness) expectOpen() *mocks.MockEngine {
	engine := mocks.NewMockEngine(h.ctrl)

	h.factory.EXPECT().NewEngine(gomock.Any()).DoAndReturn(func(cb domain.EngineCallbacks) (domain.Engine, error) {
		h.cb = cb
		return engine, nil
	})
	engine.EXPECT().SetSource(gomock.Any()).Return(nil)
	engine.EXPECT().Attach(h.surface).Return(nil)
	engine.EXPECT().SetLooping(gomock.Any()).Return(nil)
	engine.EXPECT().PrepareAsync().Return(nil)

	engine.EXPECT().IsPlaying().Return(true).AnyTimes()
	engine.EXPECT().CurrentPosition().Return(3 * time.Second).AnyTimes()
	return engine
}

// expectPrepare covers the surface and volume work done on prepare
func (h *harness) expectPrepare(engine *mocks.MockEngine, level float64) {
	h.surface.EXPECT().SetBufferSize(contentSize)
	h.surface.EXPECT().SetTransform(gomock.Any()).AnyTimes()
	engine.EXPECT().SetVolume(level, level).Return(nil)
}

func (h *harness) prepared(size domain.Size) {
	h.cb.OnPrepared(size)
	h.sched.Flush()
}

func TestManager_PlayBeforePrepared(t *testing.T) {
	h := newHarness(t, domain.PlaybackOptions{})

	h.mgr.SurfaceAvailable(h.surface, surfaceSize)
	if h.mgr.HasEngine() {
		t.Fatal("engine opened without a source")
	}

	engine := h.expectOpen()
	h.mgr.SetSource(testSource)
	if h.mgr.State() != domain.EngineOpening {
		t.Fatalf("expected Opening, got %v", h.mgr.State())
	}

	h.mgr.StartPlayback()
	h.mgr.StartPlayback()
	if h.mgr.Intent() != domain.IntentRequested {
		t.Fatal("play before prepare should record intent")
	}

	h.expectPrepare(engine, 1)
	engine.EXPECT().Play().Return(nil).Times(1)
	h.prepared(contentSize)

	names := h.rec.Names()
	want := []domain.EventName{domain.EventPlaybackStart, domain.EventReady}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, names)
	}
	if h.mgr.State() != domain.EnginePlaying {
		t.Errorf("expected Playing, got %v", h.mgr.State())
	}
}

func TestManager_ReadyWithoutIntent(t *testing.T) {
	h := newHarness(t, domain.PlaybackOptions{})
	engine := h.expectOpen()

	h.mgr.SetSource(testSource)
	h.mgr.SurfaceAvailable(h.surface, surfaceSize)

	h.expectPrepare(engine, 1)
	h.prepared(contentSize)

	if h.rec.Count(domain.EventReady) != 1 || h.rec.Count(domain.EventPlaybackStart) != 0 {
		t.Fatalf("expected only ready, got %v", h.rec.Names())
	}
	if h.mgr.State() != domain.EnginePrepared {
		t.Errorf("expected Prepared, got %v", h.mgr.State())
	}

	// A duplicate prepared from the same engine is ignored
	h.prepared(contentSize)
	if h.rec.Count(domain.EventReady) != 1 {
		t.Error("ready emitted twice for one open")
	}
}

func TestManager_URLWithHeaders(t *testing.T) {
	h := newHarness(t, domain.PlaybackOptions{})
	src := domain.Source{
		Kind:     domain.SourceURL,
		Location: "https://x/video.mp4",
		Headers:  map[string]string{"Authorization": "Bearer t"},
	}

	engine := mocks.NewMockEngine(h.ctrl)
	h.factory.EXPECT().NewEngine(gomock.Any()).DoAndReturn(func(cb domain.EngineCallbacks) (domain.Engine, error) {
		h.cb = cb
		return engine, nil
	})
	engine.EXPECT().SetSource(src).Return(nil)
	engine.EXPECT().Attach(h.surface).Return(nil)
	engine.EXPECT().SetLooping(false).Return(nil)
	engine.EXPECT().PrepareAsync().Return(nil)
	engine.EXPECT().SetVolume(1.0, 1.0).Return(nil)

	h.surface.EXPECT().SetBufferSize(contentSize)
	h.surface.EXPECT().SetTransform(domain.Transform{1.5, 0, 0, 0, 1.5, 0}).Times(1)

	h.mgr.SetSource(src)
	h.mgr.SurfaceAvailable(h.surface, surfaceSize)
	h.prepared(contentSize)

	if h.rec.Count(domain.EventReady) != 1 {
		t.Errorf("expected ready once, got %v", h.rec.Names())
	}
	if s := geometry.Scale(h.mgr.Transform()); s != 1.5 {
		t.Errorf("expected scale 1.5, got %v", s)
	}
	if h.mgr.Source().Headers["Authorization"] != "Bearer t" {
		t.Error("headers must stay on the source")
	}
}

func TestManager_ReleaseIdempotent(t *testing.T) {
	h := newHarness(t, domain.PlaybackOptions{})
	engine := h.expectOpen()
	engine.EXPECT().Dispose().Return(nil).Times(1)

	h.mgr.SetSource(testSource)
	h.mgr.SurfaceAvailable(h.surface, surfaceSize)

	h.mgr.Release()
	h.mgr.Release()

	if h.mgr.State() != domain.EngineReleased || h.mgr.HasEngine() {
		t.Errorf("expected released without engine, got %v", h.mgr.State())
	}
	if len(h.rec.Events()) != 0 {
		t.Errorf("release must not emit, got %v", h.rec.Names())
	}
}

func TestManager_StaleCallbacksDropped(t *testing.T) {
	h := newHarness(t, domain.PlaybackOptions{Autoplay: true})
	first := h.expectOpen()

	h.mgr.SetSource(testSource)
	h.mgr.SurfaceAvailable(h.surface, surfaceSize)
	stale := h.cb

	first.EXPECT().Dispose().Return(nil)
	second := h.expectOpen()
	h.mgr.SetSource(domain.Source{Kind: domain.SourceFile, Location: "/tmp/other.mp4"})

	stale.OnPrepared(contentSize)
	stale.OnError(&domain.EngineError{Kind: domain.EngineRuntimeError, Err: errors.New("late")})
	stale.OnCompleted()
	h.sched.Flush()

	if h.mgr.State() != domain.EngineOpening {
		t.Fatalf("stale callbacks changed state to %v", h.mgr.State())
	}
	if len(h.rec.Events()) != 0 {
		t.Fatalf("stale callbacks emitted %v", h.rec.Names())
	}

	// After a full release nothing is current
	second.EXPECT().Dispose().Return(nil)
	current := h.cb
	h.mgr.Release()
	current.OnPrepared(contentSize)
	h.sched.Flush()

	if h.mgr.State() != domain.EngineReleased {
		t.Errorf("expected Released, got %v", h.mgr.State())
	}
}

func TestManager_PendingSeekAppliedOnce(t *testing.T) {
	h := newHarness(t, domain.PlaybackOptions{})

	h.mgr.Seek(5000 * time.Millisecond)
	if v, ok := h.mgr.PendingSeek().Get(); !ok || v != 5*time.Second {
		t.Fatalf("expected pending seek 5s, got %v %v", v, ok)
	}

	first := h.expectOpen()
	h.mgr.SetSource(testSource)
	h.mgr.SurfaceAvailable(h.surface, surfaceSize)

	h.expectPrepare(first, 1)
	first.EXPECT().SeekTo(5 * time.Second).Return(nil).Times(1)
	h.prepared(contentSize)

	if h.mgr.PendingSeek().IsPresent() {
		t.Fatal("pending seek must be cleared after prepare")
	}

	h.cb.OnSeekComplete()
	h.sched.Flush()
	ev, ok := h.rec.Last(domain.EventSeekComplete)
	if !ok || ev.Time != 5*time.Second {
		t.Errorf("expected seekComplete at 5s, got %+v", ev)
	}

	// Reopen: the second engine must not be seeked
	first.EXPECT().Dispose().Return(nil)
	second := h.expectOpen()
	h.mgr.SetSource(domain.Source{Kind: domain.SourceFile, Location: "/tmp/other.mp4"})
	h.expectPrepare(second, 1)
	h.prepared(contentSize)
}

func TestManager_PendingSeekClearedOnFailure(t *testing.T) {
	h := newHarness(t, domain.PlaybackOptions{})
	engine := h.expectOpen()

	h.mgr.SetSource(testSource)
	h.mgr.SurfaceAvailable(h.surface, surfaceSize)
	h.mgr.Seek(2 * time.Second)

	h.expectPrepare(engine, 1)
	engine.EXPECT().SeekTo(2 * time.Second).Return(errors.New("not seekable"))
	h.prepared(contentSize)

	if h.mgr.PendingSeek().IsPresent() {
		t.Error("failed seek must still clear the pending offset")
	}
	if h.mgr.State() != domain.EnginePrepared {
		t.Errorf("seek failure should not fail the engine, got %v", h.mgr.State())
	}
}

func TestManager_DestroyWhilePlaying(t *testing.T) {
	h := newHarness(t, domain.PlaybackOptions{
		Autoplay:           true,
		ObserveCurrentTime: true,
		TimeInterval:       100 * time.Millisecond,
	})
	engine := h.expectOpen()

	h.mgr.SetSource(testSource)
	h.mgr.SurfaceAvailable(h.surface, surfaceSize)

	h.expectPrepare(engine, 1)
	engine.EXPECT().Play().Return(nil)
	h.prepared(contentSize)

	h.sched.Tick()
	if h.rec.Count(domain.EventCurrentTimeUpdated) != 1 {
		t.Fatalf("expected one tick, got %v", h.rec.Names())
	}

	engine.EXPECT().Dispose().Return(nil).Times(1)
	h.mgr.Destroy()

	if h.mgr.ObservingTime() || h.sched.ActiveTimers() != 0 {
		t.Error("time observer still running after destroy")
	}
	// The stop emits one final position
	if h.rec.Count(domain.EventCurrentTimeUpdated) != 2 {
		t.Errorf("expected final position update, got %v", h.rec.Names())
	}

	h.sched.Tick()
	h.mgr.StartPlayback()
	if h.mgr.HasEngine() {
		t.Error("destroyed manager must not reopen without a source")
	}
	if h.rec.Count(domain.EventCurrentTimeUpdated) != 2 {
		t.Error("no notifications after destroy")
	}
}

func TestManager_ObserverNeverStartedTwice(t *testing.T) {
	h := newHarness(t, domain.PlaybackOptions{ObserveCurrentTime: true})
	engine := h.expectOpen()

	h.mgr.SetSource(testSource)
	h.mgr.SurfaceAvailable(h.surface, surfaceSize)
	h.expectPrepare(engine, 1)
	h.prepared(contentSize)

	engine.EXPECT().Play().Return(nil).Times(2)
	engine.EXPECT().Pause().Return(nil).Times(1)

	h.mgr.StartPlayback()
	h.mgr.StartPlayback()
	if h.sched.ActiveTimers() != 1 {
		t.Fatalf("expected 1 timer, got %d", h.sched.ActiveTimers())
	}

	if !h.mgr.PausePlayback() {
		t.Fatal("pause should reach the engine")
	}
	if h.sched.ActiveTimers() != 0 {
		t.Fatal("pause must stop the observer")
	}

	h.mgr.StartPlayback()
	if h.sched.ActiveTimers() != 1 {
		t.Errorf("expected 1 timer after resume, got %d", h.sched.ActiveTimers())
	}
	if h.rec.Count(domain.EventPlaybackStart) != 2 {
		t.Errorf("expected 2 playbackStart, got %v", h.rec.Names())
	}
}

func TestManager_OpenErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness) *mocks.MockEngine
	}{
		{
			name: "Error - Factory Fails",
			setup: func(h *harness) *mocks.MockEngine {
				h.factory.EXPECT().NewEngine(gomock.Any()).Return(nil, errors.New("no decoder"))
				return nil
			},
		},
		{
			name: "Error - Prepare Fails",
			setup: func(h *harness) *mocks.MockEngine {
				engine := mocks.NewMockEngine(h.ctrl)
				h.factory.EXPECT().NewEngine(gomock.Any()).Return(engine, nil)
				engine.EXPECT().SetSource(gomock.Any()).Return(nil)
				engine.EXPECT().Attach(gomock.Any()).Return(nil)
				engine.EXPECT().SetLooping(gomock.Any()).Return(nil)
				engine.EXPECT().PrepareAsync().Return(errors.New("bad container"))
				return engine
			},
		},
		{
			name: "Error - Engine Panics",
			setup: func(h *harness) *mocks.MockEngine {
				engine := mocks.NewMockEngine(h.ctrl)
				h.factory.EXPECT().NewEngine(gomock.Any()).Return(engine, nil)
				engine.EXPECT().SetSource(gomock.Any()).DoAndReturn(func(domain.Source) error {
					panic("native crash")
				})
				return engine
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, domain.PlaybackOptions{})
			failed := tt.setup(h)

			h.mgr.SetSource(testSource)
			h.mgr.SurfaceAvailable(h.surface, surfaceSize)

			if h.mgr.State() != domain.EngineFailed {
				t.Fatalf("expected Error, got %v", h.mgr.State())
			}
			ev, ok := h.rec.Last(domain.EventError)
			if !ok || ev.Err == nil || ev.Err.Kind != domain.EngineOpenError {
				t.Fatalf("expected engine-open error event, got %+v", ev)
			}

			// The component stays usable: play reopens
			if failed != nil {
				failed.EXPECT().Dispose().Return(nil)
			}
			engine := h.expectOpen()
			h.mgr.StartPlayback()

			h.expectPrepare(engine, 1)
			engine.EXPECT().Play().Return(nil)
			h.prepared(contentSize)

			if h.mgr.State() != domain.EnginePlaying {
				t.Errorf("expected Playing after reopen, got %v", h.mgr.State())
			}
		})
	}
}

func TestManager_RuntimeErrorKeepsEngine(t *testing.T) {
	h := newHarness(t, domain.PlaybackOptions{Autoplay: true, ObserveCurrentTime: true})
	engine := h.expectOpen()

	h.mgr.SetSource(testSource)
	h.mgr.SurfaceAvailable(h.surface, surfaceSize)
	h.expectPrepare(engine, 1)
	engine.EXPECT().Play().Return(nil)
	h.prepared(contentSize)

	h.cb.OnError(&domain.EngineError{Kind: domain.EngineRuntimeError, Code: 1, Extra: -1004, Domain: "io"})
	h.sched.Flush()

	if h.mgr.State() != domain.EngineFailed || !h.mgr.HasEngine() {
		t.Fatalf("expected Error with engine kept, got %v", h.mgr.State())
	}
	if h.mgr.ObservingTime() {
		t.Error("observer must stop on error")
	}
	if h.mgr.LastError().Extra != -1004 {
		t.Errorf("expected diagnostics preserved, got %+v", h.mgr.LastError())
	}

	// Commands are no-ops in Error
	if h.mgr.PausePlayback() || h.mgr.SetMuted(true) || h.mgr.SetVolume(0.5) {
		t.Error("commands must not reach a failed engine")
	}
	if h.rec.Count(domain.EventError) != 1 {
		t.Errorf("expected a single error event, got %v", h.rec.Names())
	}
}

func TestManager_SurfaceDestroyedMidOpen(t *testing.T) {
	h := newHarness(t, domain.PlaybackOptions{})
	first := h.expectOpen()

	h.mgr.SetSource(testSource)
	h.mgr.SurfaceAvailable(h.surface, surfaceSize)
	h.mgr.StartPlayback()

	first.EXPECT().Dispose().Return(nil)
	h.mgr.SurfaceDestroyed()

	if h.mgr.State() != domain.EngineReleased || h.mgr.SurfaceState() != domain.SurfaceDestroyed {
		t.Fatalf("expected released with destroyed surface, got %v/%v", h.mgr.State(), h.mgr.SurfaceState())
	}
	if h.rec.Count(domain.EventError) != 0 {
		t.Fatal("surface loss is not an error")
	}

	// Surface returns; intent resumes playback
	second := h.expectOpen()
	h.mgr.SurfaceAvailable(h.surface, surfaceSize)
	h.expectPrepare(second, 1)
	second.EXPECT().Play().Return(nil)
	h.prepared(contentSize)

	if h.mgr.State() != domain.EnginePlaying {
		t.Errorf("expected Playing after surface returned, got %v", h.mgr.State())
	}
}

func TestManager_FinishedThenReplay(t *testing.T) {
	h := newHarness(t, domain.PlaybackOptions{Autoplay: true})
	engine := h.expectOpen()

	h.mgr.SetSource(testSource)
	h.mgr.SurfaceAvailable(h.surface, surfaceSize)
	h.expectPrepare(engine, 1)
	engine.EXPECT().Play().Return(nil)
	h.prepared(contentSize)

	h.cb.OnCompleted()
	h.sched.Flush()

	if !h.mgr.Finished() || h.mgr.State() != domain.EnginePaused || h.mgr.Intent() != domain.IntentIdle {
		t.Fatalf("unexpected state after completion: %v %v", h.mgr.State(), h.mgr.Intent())
	}
	if h.rec.Count(domain.EventFinished) != 1 {
		t.Fatalf("expected finished, got %v", h.rec.Names())
	}

	gomock.InOrder(
		engine.EXPECT().SeekTo(time.Duration(0)).Return(nil),
		engine.EXPECT().Play().Return(nil),
	)
	h.mgr.StartPlayback()

	if h.mgr.Finished() || h.mgr.State() != domain.EnginePlaying {
		t.Errorf("expected replay from start, got %v", h.mgr.State())
	}
}

func TestManager_VolumeDeferredUntilPrepared(t *testing.T) {
	h := newHarness(t, domain.PlaybackOptions{})
	engine := h.expectOpen()

	h.mgr.SetSource(testSource)
	h.mgr.SurfaceAvailable(h.surface, surfaceSize)

	if h.mgr.SetVolume(1.7) {
		t.Fatal("volume must not reach an opening engine")
	}
	if h.mgr.Volume() != 1 {
		t.Errorf("expected clamped volume 1, got %v", h.mgr.Volume())
	}
	h.mgr.SetMuted(true)

	h.expectPrepare(engine, 0)
	h.prepared(contentSize)

	engine.EXPECT().SetVolume(0.25, 0.25).Return(nil)
	if !h.mgr.SetVolume(0.25) || h.mgr.Muted() {
		t.Error("set volume on a prepared engine should apply and unmute")
	}
}

func TestManager_SetHeadersReopensOnChange(t *testing.T) {
	h := newHarness(t, domain.PlaybackOptions{})
	src := domain.Source{Kind: domain.SourceURL, Location: "https://x/video.mp4"}
	first := h.expectOpen()

	h.mgr.SetSource(src)
	h.mgr.SurfaceAvailable(h.surface, surfaceSize)

	first.EXPECT().Dispose().Return(nil)
	h.expectOpen()
	h.mgr.SetHeaders(map[string]string{"Authorization": "Bearer t"})

	// Same headers: no reopen
	h.mgr.SetHeaders(map[string]string{"Authorization": "Bearer t"})

	if h.mgr.Source().Headers["Authorization"] != "Bearer t" {
		t.Error("headers not stored")
	}
}

func TestManager_SizeChangeRecomputesTransform(t *testing.T) {
	h := newHarness(t, domain.PlaybackOptions{})
	engine := h.expectOpen()

	h.mgr.SetSource(testSource)
	h.mgr.SurfaceAvailable(h.surface, surfaceSize)

	h.surface.EXPECT().SetBufferSize(contentSize)
	engine.EXPECT().SetVolume(1.0, 1.0).Return(nil)
	gomock.InOrder(
		h.surface.EXPECT().SetTransform(domain.Transform{1.5, 0, 0, 0, 1.5, 0}),
		h.surface.EXPECT().SetTransform(domain.Transform{2.25, 0, 240, 0, 2.25, 0}),
		h.surface.EXPECT().SetTransform(domain.Transform{3, 0, 0, 0, 3, -180}),
	)
	h.prepared(contentSize)

	h.surface.EXPECT().SetBufferSize(domain.Size{Width: 640, Height: 480})
	h.cb.OnSizeChanged(domain.Size{Width: 640, Height: 480})
	h.sched.Flush()

	h.mgr.SetTransformSpec(domain.TransformSpec{Fill: true})

	if h.mgr.State() != domain.EnginePrepared {
		t.Errorf("size change must not affect state, got %v", h.mgr.State())
	}
}

func TestManager_StopReleases(t *testing.T) {
	h := newHarness(t, domain.PlaybackOptions{Autoplay: true})

	if h.mgr.StopPlayback() {
		t.Fatal("stop without engine should be a no-op")
	}

	engine := h.expectOpen()
	h.mgr.SetSource(testSource)
	h.mgr.SurfaceAvailable(h.surface, surfaceSize)
	h.expectPrepare(engine, 1)
	engine.EXPECT().Play().Return(nil)
	h.prepared(contentSize)

	gomock.InOrder(
		engine.EXPECT().Stop().Return(nil),
		engine.EXPECT().Dispose().Return(nil),
	)
	if !h.mgr.StopPlayback() {
		t.Fatal("stop should report the released engine")
	}
	if h.mgr.HasEngine() || h.mgr.Intent() != domain.IntentIdle {
		t.Errorf("expected idle without engine")
	}
}

func TestManager_CommandsWithoutEngineKeepAutoplay(t *testing.T) {
	tests := []struct {
		name string
		act  func(m *Manager) bool
	}{
		{name: "Stop", act: (*Manager).StopPlayback},
		{name: "Pause", act: (*Manager).PausePlayback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, domain.PlaybackOptions{Autoplay: true})

			if tt.act(h.mgr) {
				t.Fatal("command without engine should be a no-op")
			}
			if h.mgr.Intent() != domain.IntentRequested {
				t.Fatalf("autoplay intent lost, got %v", h.mgr.Intent())
			}

			engine := h.expectOpen()
			h.mgr.SetSource(testSource)
			h.mgr.SurfaceAvailable(h.surface, surfaceSize)
			h.expectPrepare(engine, 1)
			engine.EXPECT().Play().Return(nil)
			h.prepared(contentSize)

			if h.mgr.State() != domain.EnginePlaying {
				t.Errorf("expected Playing, got %v", h.mgr.State())
			}
		})
	}
}

func TestManager_NewSurfaceAttachedToEngine(t *testing.T) {
	h := newHarness(t, domain.PlaybackOptions{})
	engine := h.expectOpen()

	h.mgr.SetSource(testSource)
	h.mgr.SurfaceAvailable(h.surface, surfaceSize)
	h.expectPrepare(engine, 1)
	h.prepared(contentSize)

	other := mocks.NewMockSurface(h.ctrl)
	gomock.InOrder(
		engine.EXPECT().Attach(other).Return(nil),
		other.EXPECT().SetBufferSize(contentSize),
		other.EXPECT().SetTransform(domain.Transform{0.625, 0, 0, 0, 0.625, 75}),
	)
	h.mgr.SurfaceAvailable(other, domain.Size{Width: 800, Height: 600})

	if h.mgr.State() != domain.EnginePrepared {
		t.Errorf("expected Prepared, got %v", h.mgr.State())
	}

	// The same surface again is only a geometry update
	other.EXPECT().SetTransform(gomock.Any())
	h.mgr.SurfaceAvailable(other, domain.Size{Width: 800, Height: 600})
}

func TestManager_NewSurfaceAttachFailure(t *testing.T) {
	h := newHarness(t, domain.PlaybackOptions{})
	engine := h.expectOpen()

	h.mgr.SetSource(testSource)
	h.mgr.SurfaceAvailable(h.surface, surfaceSize)
	h.expectPrepare(engine, 1)
	h.prepared(contentSize)

	other := mocks.NewMockSurface(h.ctrl)
	engine.EXPECT().Attach(other).Return(errors.New("surface lost"))
	h.mgr.SurfaceAvailable(other, surfaceSize)

	if h.mgr.State() != domain.EngineFailed {
		t.Fatalf("expected Error, got %v", h.mgr.State())
	}
	ev, ok := h.rec.Last(domain.EventError)
	if !ok || ev.Err.Kind != domain.EngineRuntimeError {
		t.Errorf("expected runtime error event, got %+v", ev)
	}
}

func TestManager_SourceChangeWhilePlayingResumes(t *testing.T) {
	h := newHarness(t, domain.PlaybackOptions{})
	first := h.expectOpen()

	h.mgr.SetSource(testSource)
	h.mgr.SurfaceAvailable(h.surface, surfaceSize)
	h.mgr.StartPlayback()
	h.expectPrepare(first, 1)
	first.EXPECT().Play().Return(nil)
	h.prepared(contentSize)

	first.EXPECT().Dispose().Return(nil)
	second := h.expectOpen()
	h.mgr.SetSource(domain.Source{Kind: domain.SourceURL, Location: "https://cdn.example.com/next.m3u8"})

	if h.mgr.State() != domain.EngineOpening || h.mgr.Intent() != domain.IntentRequested {
		t.Fatalf("expected Opening with intent kept, got %v/%v", h.mgr.State(), h.mgr.Intent())
	}

	h.expectPrepare(second, 1)
	second.EXPECT().Play().Return(nil)
	h.prepared(contentSize)

	want := []domain.EventName{
		domain.EventPlaybackStart, domain.EventReady,
		domain.EventPlaybackStart, domain.EventReady,
	}
	names := h.rec.Names()
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
	if h.mgr.State() != domain.EnginePlaying {
		t.Errorf("expected Playing, got %v", h.mgr.State())
	}
}

func TestManager_AutoplayFailureSkipsReady(t *testing.T) {
	h := newHarness(t, domain.PlaybackOptions{Autoplay: true})
	engine := h.expectOpen()

	h.mgr.SetSource(testSource)
	h.mgr.SurfaceAvailable(h.surface, surfaceSize)
	h.expectPrepare(engine, 1)
	engine.EXPECT().Play().Return(errors.New("audio device busy"))
	h.prepared(contentSize)

	if h.mgr.State() != domain.EngineFailed {
		t.Fatalf("expected Error, got %v", h.mgr.State())
	}
	if h.rec.Count(domain.EventReady) != 0 {
		t.Errorf("ready must not follow a failed start, got %v", h.rec.Names())
	}
	if h.rec.Count(domain.EventError) != 1 {
		t.Errorf("expected one error event, got %v", h.rec.Names())
	}
}
