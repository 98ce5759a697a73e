package timeobserver

import (
	"testing"
	"time"

	"github.com/genricoloni/vidcore/internal/domain"
	"github.com/genricoloni/vidcore/internal/events"
	"github.com/genricoloni/vidcore/internal/loop"
	"go.uber.org/zap"
)

type fakeProvider struct {
	playing  bool
	position time.Duration
	reads    int
}

func (f *fakeProvider) IsPlaying() bool { return f.playing }

func (f *fakeProvider) CurrentPosition() time.Duration {
	f.reads++
	return f.position
}

func newTestObserver() (*Observer, *loop.Manual, *events.Recorder) {
	sched := loop.NewManual()
	rec := events.NewRecorder()
	return New(zap.NewNop(), sched, rec), sched, rec
}

func TestObserver_TicksOnlyWhilePlaying(t *testing.T) {
	obs, sched, rec := newTestObserver()
	p := &fakeProvider{playing: true, position: time.Second}

	h := obs.Start(250*time.Millisecond, p)
	if !h.Active() {
		t.Fatal("handle should be active after Start")
	}

	sched.Tick()
	p.position = 2 * time.Second
	sched.Tick()

	p.playing = false
	sched.Tick()

	if got := rec.Count(domain.EventCurrentTimeUpdated); got != 2 {
		t.Fatalf("expected 2 position updates, got %d", got)
	}
	last, _ := rec.Last(domain.EventCurrentTimeUpdated)
	if last.Position != 2*time.Second {
		t.Errorf("expected last position 2s, got %v", last.Position)
	}
	// A not-playing tick must not cancel the observation
	if !h.Active() || sched.ActiveTimers() != 1 {
		t.Error("observer stopped itself on a transient not-playing tick")
	}
}

func TestObserver_StopEmitsFinalPosition(t *testing.T) {
	obs, sched, rec := newTestObserver()
	p := &fakeProvider{playing: true, position: 1500 * time.Millisecond}

	h := obs.Start(0, p)
	sched.Tick()
	rec.Reset()

	p.position = 1700 * time.Millisecond
	obs.Stop(h)

	names := rec.Names()
	if len(names) != 1 || names[0] != domain.EventCurrentTimeUpdated {
		t.Fatalf("expected exactly one final update, got %v", names)
	}
	if h.Last() != 1700*time.Millisecond {
		t.Errorf("expected last 1.7s, got %v", h.Last())
	}
	if h.Active() {
		t.Error("handle still active after Stop")
	}
	if sched.ActiveTimers() != 0 {
		t.Error("timer not cancelled by Stop")
	}

	// No further notifications once Stop has returned
	sched.Tick()
	obs.Stop(h)
	if len(rec.Events()) != 1 {
		t.Errorf("expected no events after Stop, got %v", rec.Names())
	}
}

func TestObserver_StopBeforeQueuedTick(t *testing.T) {
	obs, sched, rec := newTestObserver()
	p := &fakeProvider{playing: true}

	h := obs.Start(time.Second, p)
	// Tick posted but not yet run when Stop arrives
	sched.Post(func() { obs.Stop(h) })
	sched.Tick()

	if got := rec.Count(domain.EventCurrentTimeUpdated); got != 1 {
		t.Errorf("expected only the final update, got %d", got)
	}
}

func TestObserver_StopNilSafe(t *testing.T) {
	obs, _, rec := newTestObserver()

	obs.Stop(nil)

	var h *Handle
	if h.Active() || h.Last() != 0 {
		t.Error("nil handle should be inactive with zero position")
	}
	if len(rec.Events()) != 0 {
		t.Error("Stop on nil handle must not emit")
	}
}
