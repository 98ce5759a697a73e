// Package surface provides an in-memory render target for the player plus the
// helpers that size it and turn frames into stills.
package surface

import (
	"sync"

	"github.com/genricoloni/vidcore/internal/domain"
	"go.uber.org/zap"
)

// Canvas is a software surface. The player writes the transform and buffer
// size onto it; the compositor reads them back when rendering a frame.
type Canvas struct {
	logger *zap.Logger

	mu        sync.RWMutex
	size      domain.Size
	transform domain.Transform
	buffer    domain.Size
}

// NewCanvas creates a canvas of the given size with the identity transform
func NewCanvas(logger *zap.Logger, size domain.Size) *Canvas {
	return &Canvas{
		logger:    logger,
		size:      size,
		transform: domain.IdentityTransform,
	}
}

func (c *Canvas) Size() domain.Size {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

// Resize changes the surface dimensions. The caller reports the change to the
// player so the transform is recomputed.
func (c *Canvas) Resize(size domain.Size) {
	c.mu.Lock()
	c.size = size
	c.mu.Unlock()
}

func (c *Canvas) SetTransform(t domain.Transform) {
	c.mu.Lock()
	c.transform = t
	c.mu.Unlock()

	c.logger.Debug("Surface transform set", zap.Float64s("matrix", t[:]))
}

func (c *Canvas) Transform() domain.Transform {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transform
}

func (c *Canvas) SetBufferSize(content domain.Size) {
	c.mu.Lock()
	c.buffer = content
	c.mu.Unlock()

	c.logger.Debug("Surface buffer sized", zap.Stringer("content", content))
}

// BufferSize returns the content dimensions the frame buffer was sized to
func (c *Canvas) BufferSize() domain.Size {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.buffer
}
