package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/genricoloni/vidcore/internal/domain"
	"github.com/genricoloni/vidcore/internal/engine"
	"github.com/genricoloni/vidcore/internal/source"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	startTimeout = 15 * time.Second
	stopTimeout  = 10 * time.Second
)

func (c *cli) newPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <source>",
		Short: "Play a file, res:// resource or stream URL until it ends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			headers, err := cmd.Flags().GetStringToString("header")
			if err != nil {
				return err
			}

			src, err := source.NewResolver("").ResolveWithHeaders(args[0], headers)
			if err != nil {
				return err
			}

			return runPlayer(cmd.Context(), c.v, src)
		},
	}

	cmd.Flags().StringToStringP("header", "H", nil, "HTTP request header for URL sources (key=value, repeatable)")
	cmd.Flags().Bool("autoplay", false, "Start as soon as the video is ready")
	cmd.Flags().Bool("loop", false, "Restart from the beginning when the video ends")
	cmd.Flags().Bool("muted", false, "Start with audio muted")
	cmd.Flags().Bool("observe-time", false, "Log position updates while playing")
	cmd.Flags().Duration("interval", 500*time.Millisecond, "Interval between position updates")
	cmd.Flags().Bool("controls", true, "Expose media controls over MPRIS")
	cmd.Flags().String("mpv", "", "Path to the mpv binary")
	cmd.Flags().Bool("probe", true, "Probe URL sources before opening them")
	addLayoutFlags(cmd)

	return cmd
}

// runPlayer runs the application graph until playback ends, a signal
// arrives or MPRIS asks to quit
func runPlayer(ctx context.Context, v *viper.Viper, src domain.Source) error {
	var session *engine.Session

	app := fx.New(
		AppOptions,
		fx.Supply(v, src),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Populate(&session),
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
	case <-session.Done():
	case <-app.Wait():
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), stopTimeout)
	defer cancelStop()

	return multierr.Append(session.Err(), app.Stop(stopCtx))
}
