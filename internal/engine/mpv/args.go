package mpv

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/genricoloni/vidcore/internal/domain"
	"github.com/samber/lo"
)

// launchSpec is everything the mpv command line is built from
type launchSpec struct {
	socketPath string
	target     string
	title      string
	headers    map[string]string
	loop       bool
	size       domain.Size
	extra      []string
}

// buildArgs returns the mpv arguments. mpv starts idle and paused; the target
// is loaded over IPC once events are observed, and kept open at the end so
// completion is observable.
func buildArgs(s launchSpec) []string {
	args := []string{
		"--no-terminal",
		"--really-quiet",
		"--input-ipc-server=" + s.socketPath,
		"--force-window=yes",
		"--idle=yes",
		"--keep-open=yes",
		"--pause=yes",
	}

	if s.title != "" {
		args = append(args, "--force-media-title="+mediaTitle(s.title))
	}
	if !s.size.IsZero() {
		args = append(args, fmt.Sprintf("--geometry=%dx%d", s.size.Width, s.size.Height))
	}
	if s.loop {
		args = append(args, "--loop-file=inf")
	}
	if h := headerFields(s.headers); h != "" {
		args = append(args, "--http-header-fields="+h)
	}

	return append(args, s.extra...)
}

// headerFields renders headers as mpv's comma separated list, sorted by name
func headerFields(headers map[string]string) string {
	if len(headers) == 0 {
		return ""
	}

	keys := lo.Keys(headers)
	sort.Strings(keys)

	fields := lo.Map(keys, func(k string, _ int) string {
		return fmt.Sprintf("%s: %s", k, strings.ReplaceAll(headers[k], ",", "%2C"))
	})
	return strings.Join(fields, ",")
}

var (
	errControlChars = errors.New("target contains control characters")
	errFlagLike     = errors.New("target looks like a flag")
)

// mediaTarget converts a source into the path or URL mpv opens. URLs reach
// mpv byte for byte; headers never leak into them.
func mediaTarget(src domain.Source, resourceDir string) (string, error) {
	switch src.Kind {
	case domain.SourceResource:
		return localTarget(filepath.Join(lo.Ternary(resourceDir == "", ".", resourceDir), src.Location))
	case domain.SourceFile:
		return localTarget(src.Location)
	case domain.SourceURL:
		return remoteTarget(src.Location)
	case domain.SourceNative:
		// mpv accepts any of its own URLs (av://, lavfi://, ...) as a native handle
		s, ok := src.Native.(string)
		if !ok {
			return "", fmt.Errorf("unsupported native source %T", src.Native)
		}
		if strings.Contains(s, "://") {
			return remoteTarget(s)
		}
		return localTarget(s)
	default:
		return "", fmt.Errorf("empty source")
	}
}

func localTarget(path string) (string, error) {
	if err := checkTarget(path); err != nil {
		return "", err
	}
	return filepath.Clean(strings.TrimSpace(path)), nil
}

func remoteTarget(raw string) (string, error) {
	if err := checkTarget(raw); err != nil {
		return "", err
	}
	target := strings.TrimSpace(raw)
	if u, err := url.Parse(target); err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", target, err)
	} else if u.Scheme == "" {
		return "", fmt.Errorf("URL %q has no scheme", target)
	}
	return target, nil
}

// checkTarget rejects what mpv would read as something other than a media target
func checkTarget(target string) error {
	t := strings.TrimSpace(target)
	switch {
	case t == "":
		return fmt.Errorf("empty source")
	case strings.ContainsAny(t, "\x00\n\r"):
		return errControlChars
	case strings.HasPrefix(t, "-"):
		return errFlagLike
	}
	return nil
}

// mediaTitle folds the title onto one line
func mediaTitle(title string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(title, "\x00", "")), " ")
}

// tempSocketPath returns a socket path in the OS temp directory
func tempSocketPath(name string) string {
	return filepath.Join(os.TempDir(), name)
}
