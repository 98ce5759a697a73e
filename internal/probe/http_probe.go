// Package probe checks remote media before the engine is asked to open it.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	_maxImageSize = 10 * 1024 * 1024 // 10 MB
	_userAgent    = "vidcore/1.0"
)

// Result describes what a stream URL answered with
type Result struct {
	StatusCode    int
	ContentType   string
	ContentLength int64
	// Seekable is true when the server honours byte ranges
	Seekable bool
}

// StatusError is a non-success HTTP status returned by a probed URL
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// HTTPProbe issues lightweight requests against stream and image URLs
type HTTPProbe struct {
	logger *zap.Logger
	client *http.Client
}

// NewHTTPProbe creates a new HTTP-based probe instance
func NewHTTPProbe(logger *zap.Logger) *HTTPProbe {
	return &HTTPProbe{
		logger: logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Probe requests the first byte of rawURL with the source headers attached
// and reports whether it looks like playable media
func (p *HTTPProbe) Probe(ctx context.Context, rawURL string, headers map[string]string) (Result, error) {
	req, err := p.newRequest(ctx, rawURL, headers)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return Result{}, &StatusError{Code: resp.StatusCode}
	}

	res := Result{
		StatusCode:    resp.StatusCode,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: totalLength(resp),
		Seekable:      resp.StatusCode == http.StatusPartialContent || resp.Header.Get("Accept-Ranges") == "bytes",
	}

	// Pages and error documents are the common failure; anything else is left to the engine
	if strings.HasPrefix(res.ContentType, "text/html") {
		return res, fmt.Errorf("url is not a media stream: %s", res.ContentType)
	}

	p.logger.Debug("Stream probed",
		zap.String("url", rawURL),
		zap.Int("status", res.StatusCode),
		zap.String("contentType", res.ContentType),
		zap.Int64("length", res.ContentLength),
		zap.Bool("seekable", res.Seekable))

	return res, nil
}

// FetchImage downloads image data from the given URL
func (p *HTTPProbe) FetchImage(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := p.newRequest(ctx, rawURL, headers)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "image/") {
		return nil, fmt.Errorf("url is not an image: %s", resp.Header.Get("Content-Type"))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, _maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	p.logger.Debug("Image fetched successfully", zap.Int("bytes", len(data)), zap.String("url", rawURL))
	return data, nil
}

func (p *HTTPProbe) newRequest(ctx context.Context, rawURL string, headers map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", _userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// totalLength prefers the full size from Content-Range over the one-byte body length
func totalLength(resp *http.Response) int64 {
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		if i := strings.LastIndexByte(cr, '/'); i >= 0 {
			if n, err := strconv.ParseInt(cr[i+1:], 10, 64); err == nil {
				return n
			}
		}
	}
	return resp.ContentLength
}
