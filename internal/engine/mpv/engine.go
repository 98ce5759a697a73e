// Package mpv implements the media engine on top of an mpv process driven
// over its JSON IPC socket.
package mpv

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/genricoloni/vidcore/internal/domain"
	"github.com/genricoloni/vidcore/internal/probe"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	socketWaitRetries = 10
	socketWaitDelay   = 300 * time.Millisecond
	quitTimeout       = 3 * time.Second

	errorDomainMPV  = "mpv"
	errorDomainHTTP = "http"
	errorDomainNet  = "network"
)

var (
	errDisposed   = errors.New("engine disposed")
	errNotRunning = errors.New("mpv is not running")
)

// Options configures every engine a Factory builds
type Options struct {
	// Binary is the mpv executable; searched for when empty
	Binary string
	// Probe checks URL sources over HTTP before launching mpv
	Probe bool
	// ResourceDir holds the media referenced by res:// sources
	ResourceDir string
	Title       string
	ExtraArgs   []string
}

// Prober checks a stream URL before it is opened
type Prober interface {
	Probe(ctx context.Context, rawURL string, headers map[string]string) (probe.Result, error)
}

// Factory builds mpv engines
type Factory struct {
	logger *zap.Logger
	opts   Options
	prober Prober
}

// NewFactory creates a factory; prober may be nil to skip probing
func NewFactory(logger *zap.Logger, opts Options, prober Prober) *Factory {
	return &Factory{logger: logger, opts: opts, prober: prober}
}

// NewEngine creates an idle engine reporting to cb
func (f *Factory) NewEngine(cb domain.EngineCallbacks) (domain.Engine, error) {
	if cb == nil {
		return nil, fmt.Errorf("engine callbacks are required")
	}
	return newEngine(f.logger, f.opts, f.prober, cb), nil
}

// Engine is one mpv process playing one source
type Engine struct {
	logger *zap.Logger
	opts   Options
	prober Prober
	cb     domain.EngineCallbacks

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex // guards the fields below
	src        domain.Source
	surface    domain.Surface
	loop       bool
	started    bool
	socketPath string
	cmd        *exec.Cmd
	exited     chan struct{}
	listener   *eventListener
	width      int
	height     int

	ipcMu sync.Mutex // serializes socket commands

	disposed atomic.Bool
	prepared atomic.Bool
	running  atomic.Bool
	playing  atomic.Bool
	seeking  atomic.Bool
	position atomic.Int64
	duration atomic.Int64
}

func newEngine(logger *zap.Logger, opts Options, prober Prober, cb domain.EngineCallbacks) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		logger: logger,
		opts:   opts,
		prober: prober,
		cb:     cb,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetSource stores the source; URL headers become --http-header-fields
func (e *Engine) SetSource(src domain.Source) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed.Load() {
		return errDisposed
	}
	if e.started {
		return fmt.Errorf("source cannot change after prepare")
	}
	e.src = src
	return nil
}

// Attach records the surface; its size becomes the mpv window geometry
func (e *Engine) Attach(surface domain.Surface) error {
	if surface == nil {
		return fmt.Errorf("surface is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.surface = surface
	return nil
}

// PrepareAsync validates the source and launches mpv in the background.
// Completion is reported through OnPrepared or OnError.
func (e *Engine) PrepareAsync() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed.Load() {
		return errDisposed
	}
	if e.started {
		return fmt.Errorf("prepare already requested")
	}

	target, err := mediaTarget(e.src, e.opts.ResourceDir)
	if err != nil {
		return fmt.Errorf("invalid media target: %w", err)
	}

	binary, err := FindBinary(e.logger, e.opts.Binary)
	if err != nil {
		return err
	}

	spec := launchSpec{
		socketPath: tempSocketPath("vidcore-" + uuid.NewString() + ".sock"),
		target:     target,
		title:      e.opts.Title,
		headers:    e.src.Headers,
		loop:       e.loop,
		extra:      e.opts.ExtraArgs,
	}
	if e.surface != nil {
		spec.size = e.surface.Size()
	}

	e.started = true
	e.wg.Add(1)
	go e.prepare(binary, spec, e.src.Kind == domain.SourceURL)

	return nil
}

func (e *Engine) prepare(binary string, spec launchSpec, remote bool) {
	defer e.wg.Done()

	if remote && e.opts.Probe && e.prober != nil {
		if _, err := e.prober.Probe(e.ctx, spec.target, spec.headers); err != nil {
			if e.ctx.Err() == nil {
				e.fail(probeError(err))
			}
			return
		}
	}

	if err := e.launch(binary, spec); err != nil {
		if e.ctx.Err() == nil {
			e.fail(&domain.EngineError{Kind: domain.EngineRuntimeError, Domain: errorDomainMPV, Err: err})
		}
	}
}

// launch starts the process and connects the event listener
func (e *Engine) launch(binary string, spec launchSpec) error {
	e.mu.Lock()
	if e.disposed.Load() {
		e.mu.Unlock()
		return errDisposed
	}

	cmd := exec.Command(binary, buildArgs(spec)...)
	cmd.SysProcAttr = sysProcAttr()
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("start mpv: %w", err)
	}

	exited := make(chan struct{})
	e.cmd = cmd
	e.exited = exited
	e.socketPath = spec.socketPath
	e.mu.Unlock()

	e.logger.Debug("mpv started",
		zap.Int("pid", cmd.Process.Pid),
		zap.String("socket", spec.socketPath))

	go e.reap(cmd, exited)

	if err := e.waitForSocket(spec.socketPath, exited); err != nil {
		select {
		case <-exited:
			// reap reports the exit
			return nil
		default:
		}
		e.logger.Warn("Killing mpv: socket never became ready")
		_ = killProcess(cmd)
		return fmt.Errorf("mpv socket not ready: %w", err)
	}

	e.running.Store(true)

	listener, err := listen(e.logger, spec.socketPath, e.handleMessage)
	if err != nil {
		e.running.Store(false)
		return err
	}

	e.mu.Lock()
	if e.disposed.Load() {
		e.mu.Unlock()
		return listener.Close()
	}
	e.listener = listener
	e.mu.Unlock()

	// Loading only now guarantees file-loaded reaches the listener
	if _, err := e.command("loadfile", spec.target, "replace"); err != nil {
		return fmt.Errorf("load %s: %w", spec.target, err)
	}
	return nil
}

// reap waits for the process so it never lingers as a zombie
func (e *Engine) reap(cmd *exec.Cmd, exited chan struct{}) {
	err := cmd.Wait()
	close(exited)
	e.running.Store(false)
	e.playing.Store(false)

	if e.disposed.Load() {
		return
	}

	code := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	if err == nil {
		err = errors.New("mpv exited unexpectedly")
	}
	e.fail(&domain.EngineError{Kind: domain.EngineRuntimeError, Code: code, Domain: errorDomainMPV, Err: err})
}

// waitForSocket polls until the mpv IPC socket is accepting connections
func (e *Engine) waitForSocket(socketPath string, exited <-chan struct{}) error {
	for i := 0; i < socketWaitRetries; i++ {
		select {
		case <-e.ctx.Done():
			return e.ctx.Err()
		case <-exited:
			return fmt.Errorf("mpv exited before socket was ready")
		case <-time.After(socketWaitDelay):
		}

		conn, err := net.Dial("unix", socketPath)
		if err == nil {
			conn.Close()
			return nil
		}
	}
	return fmt.Errorf("socket %s not ready after %d attempts", socketPath, socketWaitRetries)
}

func (e *Engine) Play() error {
	if err := e.setProperty("pause", false); err != nil {
		return err
	}
	e.playing.Store(true)
	return nil
}

func (e *Engine) Pause() error {
	e.playing.Store(false)
	return e.setProperty("pause", true)
}

// Stop halts playback; the process stays up until Dispose
func (e *Engine) Stop() error {
	e.playing.Store(false)
	return e.setProperty("pause", true)
}

// SeekTo seeks to an absolute position; playback-restart confirms it
func (e *Engine) SeekTo(pos time.Duration) error {
	e.seeking.Store(true)
	if _, err := e.command("seek", pos.Seconds(), "absolute"); err != nil {
		e.seeking.Store(false)
		return err
	}
	return nil
}

// SetVolume maps the channel average onto mpv's 0-100 volume
func (e *Engine) SetVolume(left, right float64) error {
	level := math.Round((left + right) / 2 * 100)
	return e.setProperty("volume", level)
}

// SetLooping is passed on the command line before prepare and set live after
func (e *Engine) SetLooping(loop bool) error {
	e.mu.Lock()
	e.loop = loop
	e.mu.Unlock()

	if !e.running.Load() {
		return nil
	}
	value := "no"
	if loop {
		value = "inf"
	}
	return e.setProperty("loop-file", value)
}

func (e *Engine) IsPlaying() bool {
	return e.playing.Load()
}

func (e *Engine) CurrentPosition() time.Duration {
	return time.Duration(e.position.Load())
}

func (e *Engine) Duration() time.Duration {
	return time.Duration(e.duration.Load())
}

// Dispose quits mpv, closes the listener and removes the socket. Idempotent.
func (e *Engine) Dispose() error {
	if !e.disposed.CompareAndSwap(false, true) {
		return nil
	}
	e.cancel()

	e.mu.Lock()
	cmd, exited, listener, socketPath := e.cmd, e.exited, e.listener, e.socketPath
	e.mu.Unlock()

	var errs error

	if cmd != nil {
		// Try graceful quit via IPC
		_, _ = sendCommand(socketPath, []any{"quit"})

		select {
		case <-exited:
		case <-time.After(quitTimeout):
			errs = multierr.Append(errs, killProcess(cmd))
		}
	}

	if listener != nil {
		errs = multierr.Append(errs, listener.Close())
	}

	e.wg.Wait()

	if socketPath != "" {
		if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = multierr.Append(errs, err)
		}
	}

	e.running.Store(false)
	e.playing.Store(false)
	e.logger.Debug("mpv engine disposed")
	return errs
}

func (e *Engine) setProperty(name string, value any) error {
	_, err := e.command("set_property", name, value)
	return err
}

func (e *Engine) command(args ...any) (any, error) {
	if e.disposed.Load() {
		return nil, errDisposed
	}
	if !e.running.Load() {
		return nil, errNotRunning
	}

	e.mu.Lock()
	socketPath := e.socketPath
	e.mu.Unlock()

	e.ipcMu.Lock()
	defer e.ipcMu.Unlock()
	return sendCommand(socketPath, args)
}

// fail reports err unless the engine was disposed
func (e *Engine) fail(err *domain.EngineError) {
	if e.disposed.Load() {
		return
	}
	e.logger.Debug("mpv engine failed", zap.Error(err))
	e.cb.OnError(err)
}

// handleMessage translates mpv events into engine callbacks
func (e *Engine) handleMessage(msg ipcMessage) {
	if e.disposed.Load() {
		return
	}

	switch msg.Event {
	case "property-change":
		e.handleProperty(msg.Name, msg.Data)

	case "file-loaded":
		if e.prepared.CompareAndSwap(false, true) {
			e.cb.OnPrepared(e.videoSize())
		}

	case "playback-restart":
		if e.seeking.CompareAndSwap(true, false) {
			e.cb.OnSeekComplete()
		}

	case "end-file":
		if msg.Reason == "error" {
			e.playing.Store(false)
			e.fail(&domain.EngineError{
				Kind:   domain.EngineRuntimeError,
				Domain: errorDomainMPV,
				Err:    fmt.Errorf("playback failed: %s", msg.FileError),
			})
		}
	}
}

func (e *Engine) handleProperty(name string, data any) {
	switch name {
	case "time-pos":
		if v, ok := data.(float64); ok {
			e.position.Store(int64(v * float64(time.Second)))
		}
	case "duration":
		if v, ok := data.(float64); ok {
			e.duration.Store(int64(v * float64(time.Second)))
		}
	case "pause":
		if v, ok := data.(bool); ok {
			e.playing.Store(!v)
		}
	case "eof-reached":
		if v, ok := data.(bool); ok && v && e.prepared.Load() {
			e.playing.Store(false)
			e.cb.OnCompleted()
		}
	case "width", "height":
		e.handleDimension(name, data)
	case "cache-buffering-state":
		if v, ok := data.(float64); ok {
			e.cb.OnBufferingUpdate(int(v))
		}
	}
}

func (e *Engine) handleDimension(name string, data any) {
	v, ok := data.(float64)
	if !ok {
		return
	}

	e.mu.Lock()
	old := domain.Size{Width: e.width, Height: e.height}
	if name == "width" {
		e.width = int(v)
	} else {
		e.height = int(v)
	}
	size := domain.Size{Width: e.width, Height: e.height}
	e.mu.Unlock()

	if e.prepared.Load() && !size.IsZero() && size != old {
		e.cb.OnSizeChanged(size)
	}
}

// videoSize returns the observed dimensions, querying mpv if they have not arrived
func (e *Engine) videoSize() domain.Size {
	e.mu.Lock()
	size := domain.Size{Width: e.width, Height: e.height}
	e.mu.Unlock()

	if !size.IsZero() {
		return size
	}

	w, errW := e.command("get_property", "width")
	h, errH := e.command("get_property", "height")
	if err := multierr.Combine(errW, errH); err != nil {
		e.logger.Debug("Video size unavailable", zap.Error(err))
		return domain.Size{}
	}

	wf, _ := w.(float64)
	hf, _ := h.(float64)
	return domain.Size{Width: int(wf), Height: int(hf)}
}

// probeError classifies a failed probe, keeping the HTTP status as the code
func probeError(err error) *domain.EngineError {
	var se *probe.StatusError
	if errors.As(err, &se) {
		return &domain.EngineError{Kind: domain.EngineRuntimeError, Code: se.Code, Domain: errorDomainHTTP, Err: err}
	}
	return &domain.EngineError{Kind: domain.EngineRuntimeError, Domain: errorDomainNet, Err: err}
}
