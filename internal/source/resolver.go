// Package source turns descriptor strings into typed media sources.
package source

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/genricoloni/vidcore/internal/domain"
	"github.com/samber/lo"
)

// ResourcePrefix marks media bundled with the application
const ResourcePrefix = "res://"

// ErrInvalidSource is returned when a descriptor is neither a resource,
// a file path nor a URL
var ErrInvalidSource = errors.New("invalid source")

// streamSchemes are the URL schemes handed to the engine as remote streams
var streamSchemes = []string{"http", "https", "rtsp", "rtmp", "rtp", "udp", "hls"}

// Resolver maps descriptors to sources. App-relative paths ("~/...") are
// joined onto AppDir.
type Resolver struct {
	AppDir string
}

// NewResolver creates a resolver rooted at appDir; empty means the working directory
func NewResolver(appDir string) *Resolver {
	return &Resolver{AppDir: appDir}
}

// Resolve uses a resolver rooted at the working directory
func Resolve(descriptor string) (domain.Source, error) {
	return NewResolver("").Resolve(descriptor)
}

// Resolve classifies descriptor. Resource and file paths win over URLs.
func (r *Resolver) Resolve(descriptor string) (domain.Source, error) {
	d := strings.TrimSpace(descriptor)
	if d == "" {
		return domain.Source{}, fmt.Errorf("%w: empty descriptor", ErrInvalidSource)
	}

	if IsFileOrResourcePath(d) {
		return r.fromFileOrResource(d)
	}

	u, err := url.Parse(d)
	if err != nil {
		return domain.Source{}, fmt.Errorf("%w: %q: %v", ErrInvalidSource, d, err)
	}
	if !lo.Contains(streamSchemes, strings.ToLower(u.Scheme)) || u.Host == "" {
		return domain.Source{}, fmt.Errorf("%w: %q is not a file, resource or stream URL", ErrInvalidSource, d)
	}

	return domain.Source{Kind: domain.SourceURL, Location: d}, nil
}

// ResolveWithHeaders resolves descriptor and attaches headers to URL sources
func (r *Resolver) ResolveWithHeaders(descriptor string, headers map[string]string) (domain.Source, error) {
	src, err := r.Resolve(descriptor)
	if err != nil {
		return src, err
	}
	if src.Kind == domain.SourceURL && len(headers) > 0 {
		src = src.WithHeaders(headers)
	}
	return src, nil
}

// FromNative wraps a pre-built engine handle
func FromNative(handle any) (domain.Source, error) {
	if handle == nil {
		return domain.Source{}, fmt.Errorf("%w: nil native handle", ErrInvalidSource)
	}
	return domain.Source{Kind: domain.SourceNative, Native: handle}, nil
}

// IsFileOrResourcePath reports whether path names a resource or a local file
func IsFileOrResourcePath(path string) bool {
	switch {
	case strings.HasPrefix(path, ResourcePrefix):
		return true
	case strings.HasPrefix(path, "~/"), strings.HasPrefix(path, "file://"):
		return true
	case strings.HasPrefix(path, "./"), strings.HasPrefix(path, "../"):
		return true
	default:
		return filepath.IsAbs(path)
	}
}

func (r *Resolver) fromFileOrResource(path string) (domain.Source, error) {
	if name, ok := strings.CutPrefix(path, ResourcePrefix); ok {
		if name == "" {
			return domain.Source{}, fmt.Errorf("%w: empty resource name", ErrInvalidSource)
		}
		return domain.Source{Kind: domain.SourceResource, Location: name}, nil
	}

	if rest, ok := strings.CutPrefix(path, "file://"); ok {
		path = rest
	}

	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		base := r.AppDir
		if base == "" {
			wd, err := os.Getwd()
			if err != nil {
				return domain.Source{}, fmt.Errorf("failed to resolve app directory: %w", err)
			}
			base = wd
		}
		path = filepath.Join(base, rest)
	}

	if path == "" {
		return domain.Source{}, fmt.Errorf("%w: empty file path", ErrInvalidSource)
	}
	return domain.Source{Kind: domain.SourceFile, Location: filepath.Clean(path)}, nil
}
