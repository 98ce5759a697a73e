package main

import (
	"context"

	"github.com/genricoloni/vidcore/internal/config"
	"github.com/genricoloni/vidcore/internal/control"
	"github.com/genricoloni/vidcore/internal/domain"
	"github.com/genricoloni/vidcore/internal/engine"
	"github.com/genricoloni/vidcore/internal/engine/mpv"
	"github.com/genricoloni/vidcore/internal/events"
	"github.com/genricoloni/vidcore/internal/loop"
	"github.com/genricoloni/vidcore/internal/playback"
	"github.com/genricoloni/vidcore/internal/probe"
	"github.com/genricoloni/vidcore/internal/surface"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const eventBuffer = 64

// AppOptions is the playback graph. Callers supply the *viper.Viper and the
// domain.Source to play.
var AppOptions = fx.Options(
	fx.Provide(
		newLogger,
		config.NewAppConfig,
		newDomainConfig,
		loop.New,
		newScheduler,
		newChannelSink,
		newMPRIS,
		newEventSink,
		probe.NewHTTPProbe,
		newEngineFactory,
		newCanvas,
		newPlayer,
		newSession,
	),
	fx.Invoke(registerHooks),
)

// newLogger creates the production logger, at Debug when log.debug is set
func newLogger(v *viper.Viper) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if v.GetBool("log.debug") {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func newDomainConfig(c *config.AppConfig) domain.Config {
	return c
}

func newScheduler(l *loop.Loop) domain.Scheduler {
	return l
}

func newChannelSink(logger *zap.Logger) *events.ChannelSink {
	return events.NewChannelSink(logger, eventBuffer)
}

// newMPRIS wires the MPRIS Quit call to an application shutdown
func newMPRIS(logger *zap.Logger, l *loop.Loop, shutdowner fx.Shutdowner) *control.MPRIS {
	return control.NewMPRIS(logger, l, config.Name, func() {
		if err := shutdowner.Shutdown(); err != nil {
			logger.Warn("Shutdown request failed", zap.Error(err))
		}
	})
}

func newEventSink(logger *zap.Logger, ch *events.ChannelSink, mpris *control.MPRIS) domain.EventSink {
	return events.Fanout{events.NewLogSink(logger), ch, mpris}
}

func newEngineFactory(logger *zap.Logger, cfg *config.AppConfig, prober *probe.HTTPProbe) domain.EngineFactory {
	return mpv.NewFactory(logger, mpv.Options{
		Binary:      cfg.GetMPVBinary(),
		Probe:       cfg.GetProbe(),
		ResourceDir: cfg.GetResourceDir(),
		Title:       config.Name,
	}, prober)
}

func newCanvas(logger *zap.Logger, cfg *config.AppConfig) *surface.Canvas {
	return surface.NewCanvas(logger, surface.ResolveSize(logger, cfg.GetSurfaceSize()))
}

func newPlayer(
	logger *zap.Logger,
	factory domain.EngineFactory,
	sched domain.Scheduler,
	sink domain.EventSink,
	cfg domain.Config,
	mpris *control.MPRIS,
) *playback.Player {
	p := playback.New(logger, factory, sched, sink, cfg.PlayerOptions())
	mpris.Bind(p)
	return p
}

func newSession(
	logger *zap.Logger,
	l *loop.Loop,
	p *playback.Player,
	canvas *surface.Canvas,
	src domain.Source,
	ch *events.ChannelSink,
) *engine.Session {
	return engine.NewSession(logger, l, p, canvas, src, ch.Events())
}

// registerHooks sets up application lifecycle hooks
func registerHooks(
	lc fx.Lifecycle,
	logger *zap.Logger,
	cfg *config.AppConfig,
	l *loop.Loop,
	mpris *control.MPRIS,
	session *engine.Session,
	ch *events.ChannelSink,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := l.Start(ctx); err != nil {
				return err
			}

			if cfg.PlayerOptions().Controls {
				// Media keys are optional; playback works without a session bus
				if err := mpris.Start(ctx); err != nil {
					logger.Warn("Media controls unavailable", zap.Error(err))
				}
			}

			if err := session.Start(ctx); err != nil {
				return err
			}

			logger.Info("vidcore started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")

			err := multierr.Combine(
				session.Stop(ctx),
				mpris.Stop(ctx),
				l.Stop(ctx),
			)
			ch.Close()
			return err
		},
	})
}
