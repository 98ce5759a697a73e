package main

import (
	"context"
	"fmt"

	"github.com/genricoloni/vidcore/internal/config"
	"github.com/genricoloni/vidcore/internal/domain"
	"github.com/genricoloni/vidcore/internal/probe"
	"github.com/genricoloni/vidcore/internal/source"
	"github.com/genricoloni/vidcore/internal/surface"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *cli) newPosterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poster <image>",
		Short: "Render an image the way the player lays out video and save it as JPEG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(c.v)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cfg := config.NewAppConfig(logger, c.v)

			data, err := c.readImage(cmd.Context(), logger, args[0])
			if err != nil {
				return err
			}

			writer := surface.NewPosterWriter(logger, c.fs, cfg.GetSnapshotDir(),
				surface.NewCompositor(logger, cfg.GetBlurBackdrop()))

			size := surface.ResolveSize(logger, cfg.GetSurfaceSize())
			path, err := writer.Write(cmd.Context(), data, size, cfg.PlayerOptions().Spec)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().String("out", "", "Output directory")
	cmd.Flags().Bool("blur", true, "Fill letterbox bars with a blurred copy of the image")
	addLayoutFlags(cmd)

	return cmd
}

// readImage loads a local path or downloads a URL
func (c *cli) readImage(ctx context.Context, logger *zap.Logger, descriptor string) ([]byte, error) {
	src, err := source.Resolve(descriptor)
	if err != nil {
		return nil, err
	}

	switch src.Kind {
	case domain.SourceURL:
		return probe.NewHTTPProbe(logger).FetchImage(ctx, src.Location, nil)
	case domain.SourceFile:
		data, err := afero.ReadFile(c.fs, src.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: posters need a file or URL, got %s", source.ErrInvalidSource, src.Kind)
	}
}
