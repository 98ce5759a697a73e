package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/genricoloni/vidcore/internal/domain"
	"github.com/genricoloni/vidcore/internal/events"
	"github.com/genricoloni/vidcore/internal/loop"
	"github.com/genricoloni/vidcore/internal/surface"
	"go.uber.org/zap"
)

type fakePlayer struct {
	mu    sync.Mutex
	opts  domain.PlaybackOptions
	calls []string
}

func (f *fakePlayer) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakePlayer) SurfaceAvailable(domain.Surface) { f.record("surfaceAvailable") }
func (f *fakePlayer) SurfaceDestroyed()               { f.record("surfaceDestroyed") }
func (f *fakePlayer) SetSource(domain.Source)         { f.record("setSource") }
func (f *fakePlayer) Play()                           { f.record("play") }
func (f *fakePlayer) Destroy()                        { f.record("destroy") }
func (f *fakePlayer) Options() domain.PlaybackOptions { return f.opts }

func (f *fakePlayer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func startedLoop(t *testing.T) *loop.Loop {
	t.Helper()
	l := loop.New(zap.NewNop())
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("loop start failed: %v", err)
	}
	t.Cleanup(func() { _ = l.Stop(context.Background()) })
	return l
}

func newTestSession(t *testing.T, player *fakePlayer) (*Session, *events.ChannelSink) {
	t.Helper()
	sink := events.NewChannelSink(zap.NewNop(), 8)
	canvas := surface.NewCanvas(zap.NewNop(), domain.Size{Width: 640, Height: 360})
	src := domain.Source{Kind: domain.SourceFile, Location: "/videos/clip.mp4"}

	return NewSession(zap.NewNop(), startedLoop(t), player, canvas, src, sink.Events()), sink
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("Timeout: session did not finish")
	}
}

func TestSession_StartOrder(t *testing.T) {
	tests := []struct {
		name          string
		autoplay      bool
		expectedCalls []string
	}{
		{
			name:          "Without Autoplay Requests Play",
			expectedCalls: []string{"surfaceAvailable", "setSource", "play"},
		},
		{
			name:          "Autoplay Already Requested",
			autoplay:      true,
			expectedCalls: []string{"surfaceAvailable", "setSource"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			player := &fakePlayer{opts: domain.PlaybackOptions{Autoplay: tt.autoplay}}
			s, _ := newTestSession(t, player)

			if err := s.Start(context.Background()); err != nil {
				t.Fatalf("Start failed: %v", err)
			}
			defer s.Stop(context.Background())

			got := player.Calls()
			if len(got) != len(tt.expectedCalls) {
				t.Fatalf("expected %v, got %v", tt.expectedCalls, got)
			}
			for i := range got {
				if got[i] != tt.expectedCalls[i] {
					t.Errorf("call %d: expected %s, got %s", i, tt.expectedCalls[i], got[i])
				}
			}
		})
	}
}

func TestSession_EndsOnEvents(t *testing.T) {
	runtimeErr := &domain.EngineError{Kind: domain.EngineRuntimeError, Code: 403, Domain: "http"}

	tests := []struct {
		name        string
		emit        []domain.Event
		closeSink   bool
		expectedErr error
	}{
		{
			name: "Finished",
			emit: []domain.Event{
				{Name: domain.EventReady},
				{Name: domain.EventPlaybackStart},
				{Name: domain.EventCurrentTimeUpdated, Position: time.Second},
				{Name: domain.EventFinished},
			},
		},
		{
			name:        "Error",
			emit:        []domain.Event{{Name: domain.EventError, Err: runtimeErr}},
			expectedErr: runtimeErr,
		},
		{
			name:      "Sink Closed",
			closeSink: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, sink := newTestSession(t, &fakePlayer{})
			if err := s.Start(context.Background()); err != nil {
				t.Fatalf("Start failed: %v", err)
			}

			for _, ev := range tt.emit {
				sink.Emit(ev)
			}
			if tt.closeSink {
				sink.Close()
			}

			waitDone(t, s)

			if tt.expectedErr == nil && s.Err() != nil {
				t.Errorf("unexpected error: %v", s.Err())
			}
			if tt.expectedErr != nil && !errors.Is(s.Err(), tt.expectedErr) {
				t.Errorf("expected %v, got %v", tt.expectedErr, s.Err())
			}

			if err := s.Stop(context.Background()); err != nil {
				t.Errorf("Stop failed: %v", err)
			}
		})
	}
}

func TestSession_StopDestroysPlayer(t *testing.T) {
	player := &fakePlayer{opts: domain.PlaybackOptions{Autoplay: true}}
	s, _ := newTestSession(t, player)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	waitDone(t, s)

	calls := player.Calls()
	if calls[len(calls)-2] != "surfaceDestroyed" || calls[len(calls)-1] != "destroy" {
		t.Errorf("expected surface release then destroy, got %v", calls)
	}
	if s.Err() != nil {
		t.Errorf("stop must not record an error, got %v", s.Err())
	}
}

func TestSession_StoppedLoop(t *testing.T) {
	l := loop.New(zap.NewNop())
	_ = l.Start(context.Background())
	_ = l.Stop(context.Background())

	sink := events.NewChannelSink(zap.NewNop(), 1)
	s := NewSession(zap.NewNop(), l, &fakePlayer{}, surface.NewCanvas(zap.NewNop(), domain.Size{}), domain.Source{}, sink.Events())

	if err := s.Start(context.Background()); !errors.Is(err, loop.ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
	if err := s.Stop(context.Background()); !errors.Is(err, loop.ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}
