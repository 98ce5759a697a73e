package mpv

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// ErrBinaryNotFound is returned when no mpv executable can be located
var ErrBinaryNotFound = errors.New("mpv binary not found")

// FindBinary returns configured if it is executable, otherwise the first
// platform candidate found on PATH or on disk
func FindBinary(logger *zap.Logger, configured string) (string, error) {
	if configured != "" {
		if isExecutable(configured) {
			return configured, nil
		}
		return "", fmt.Errorf("%w: configured path %s is not executable", ErrBinaryNotFound, configured)
	}

	for _, candidate := range binaryCandidates() {
		if path, err := exec.LookPath(candidate); err == nil {
			logger.Debug("mpv binary detected", zap.String("path", path))
			return path, nil
		}
	}

	return "", ErrBinaryNotFound
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return executableMode(info)
}
