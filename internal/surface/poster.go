package surface

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // PNG format support
	"path/filepath"

	"github.com/genricoloni/vidcore/internal/domain"
	"github.com/genricoloni/vidcore/internal/geometry"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const posterFilename = "poster.jpg"

// PosterWriter renders a still image the way the player would lay out a video
// frame and stores it as a JPEG
type PosterWriter struct {
	logger     *zap.Logger
	fs         afero.Fs
	dir        string
	compositor *Compositor
}

// NewPosterWriter creates a writer storing posters under dir on fs
func NewPosterWriter(logger *zap.Logger, fs afero.Fs, dir string, compositor *Compositor) *PosterWriter {
	return &PosterWriter{
		logger:     logger,
		fs:         fs,
		dir:        dir,
		compositor: compositor,
	}
}

// Render lays imageData out on a surface of the given size and encodes the result
func (p *PosterWriter) Render(ctx context.Context, imageData []byte, size domain.Size, spec domain.TransformSpec) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	content := domain.Size{Width: b.Dx(), Height: b.Dy()}

	canvas := NewCanvas(p.logger, size)
	canvas.SetBufferSize(content)
	canvas.SetTransform(geometry.ComputeTransform(size, content, spec))

	frame, err := p.compositor.Render(img, canvas)
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, frame, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	p.logger.Debug("Poster rendered", zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

// Write renders the poster and saves it, returning the file path
func (p *PosterWriter) Write(ctx context.Context, imageData []byte, size domain.Size, spec domain.TransformSpec) (string, error) {
	data, err := p.Render(ctx, imageData, size, spec)
	if err != nil {
		return "", fmt.Errorf("failed to render poster: %w", err)
	}

	if err := p.fs.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := filepath.Join(p.dir, posterFilename)
	if err := afero.WriteFile(p.fs, outputPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write poster file: %w", err)
	}

	p.logger.Info("Poster written",
		zap.String("path", outputPath),
		zap.Int("size", len(data)),
		zap.Stringer("mode", spec.Orientation),
		zap.Bool("fill", spec.Fill))

	return outputPath, nil
}
