package lifecycle

import (
	"weak"

	"github.com/genricoloni/vidcore/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// engineObserver receives the callbacks of one engine instance. It holds
// the manager weakly and only acts while its token is still current, so a
// discarded engine can neither keep the manager alive nor mutate it.
type engineObserver struct {
	owner weak.Pointer[Manager]
	token uuid.UUID
	sched domain.Scheduler
}

func newEngineObserver(m *Manager, token uuid.UUID, sched domain.Scheduler) *engineObserver {
	return &engineObserver{
		owner: weak.Make(m),
		token: token,
		sched: sched,
	}
}

// dispatch hops onto the scheduler and runs fn if the engine is still current
func (o *engineObserver) dispatch(callback string, fn func(m *Manager)) {
	o.sched.Post(func() {
		m := o.owner.Value()
		if m == nil {
			return
		}
		if m.token != o.token {
			m.logger.Debug("Dropping stale engine callback",
				zap.String("callback", callback),
				zap.Stringer("token", o.token))
			return
		}
		fn(m)
	})
}

func (o *engineObserver) OnPrepared(content domain.Size) {
	o.dispatch("prepared", func(m *Manager) { m.handlePrepared(content) })
}

func (o *engineObserver) OnSizeChanged(content domain.Size) {
	o.dispatch("sizeChanged", func(m *Manager) { m.handleSizeChanged(content) })
}

func (o *engineObserver) OnSeekComplete() {
	o.dispatch("seekComplete", func(m *Manager) { m.handleSeekComplete() })
}

func (o *engineObserver) OnCompleted() {
	o.dispatch("completed", func(m *Manager) { m.handleCompleted() })
}

func (o *engineObserver) OnError(err *domain.EngineError) {
	o.dispatch("error", func(m *Manager) { m.handleError(err) })
}

func (o *engineObserver) OnBufferingUpdate(percent int) {
	o.dispatch("buffering", func(m *Manager) { m.handleBuffering(percent) })
}
