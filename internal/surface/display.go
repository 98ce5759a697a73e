package surface

import (
	"github.com/genricoloni/vidcore/internal/domain"
	"github.com/kbinani/screenshot"
	"go.uber.org/zap"
)

// FallbackSize is used when no display can be queried
var FallbackSize = domain.Size{Width: 1920, Height: 1080}

// DisplaySize detects the primary display resolution
func DisplaySize(logger *zap.Logger) domain.Size {
	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		logger.Warn("No active displays detected, falling back",
			zap.Stringer("size", FallbackSize))
		return FallbackSize
	}

	bounds := screenshot.GetDisplayBounds(0)
	size := domain.Size{Width: bounds.Dx(), Height: bounds.Dy()}

	logger.Info("Display size detected", zap.Int("width", size.Width), zap.Int("height", size.Height))
	return size
}

// ResolveSize returns configured when both dimensions are set, otherwise the
// primary display size
func ResolveSize(logger *zap.Logger, configured domain.Size) domain.Size {
	if !configured.IsZero() {
		return configured
	}
	return DisplaySize(logger)
}
