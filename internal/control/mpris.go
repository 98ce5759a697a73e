// Package control exposes the player to desktop media controls over MPRIS.
package control

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/genricoloni/vidcore/internal/domain"
	"github.com/genricoloni/vidcore/internal/playback"
	"github.com/genricoloni/vidcore/internal/source"
	"github.com/godbus/dbus/v5"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	BusName     = "org.mpris.MediaPlayer2.vidcore"
	ObjectPath  = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	rootIface   = "org.mpris.MediaPlayer2"
	playerIface = "org.mpris.MediaPlayer2.Player"
	propsIface  = "org.freedesktop.DBus.Properties"

	trackPath   = dbus.ObjectPath("/org/genricoloni/vidcore/track/current")
	noTrackPath = dbus.ObjectPath("/org/mpris/MediaPlayer2/TrackList/NoTrack")

	callTimeout = 2 * time.Second
)

// Player is the transport surface driven by media keys
type Player interface {
	Play()
	Pause()
	Stop()
	SeekTo(pos time.Duration)
	SetVolume(level float64)
	SetSource(src domain.Source)
	State() playback.State
	CurrentTime() time.Duration
	Duration() time.Duration
	Volume() float64
	Muted() bool
	Source() domain.Source
}

// Dispatcher runs calls on the player's execution context
type Dispatcher interface {
	Do(ctx context.Context, fn func()) error
}

// MPRIS serves org.mpris.MediaPlayer2 for one player. D-Bus calls arrive on
// godbus goroutines and are re-entered onto the dispatcher; player events
// arrive through Emit on the dispatcher and become PropertiesChanged signals.
type MPRIS struct {
	logger   *zap.Logger
	dispatch Dispatcher
	connect  func() (DBusClient, error)
	identity string
	quit     func()

	mu      sync.RWMutex
	conn    DBusClient
	name    string
	player  Player
	running bool
}

// NewMPRIS creates the service. quit is invoked for the MPRIS Quit call and may be nil.
func NewMPRIS(logger *zap.Logger, dispatch Dispatcher, identity string, quit func()) *MPRIS {
	return &MPRIS{
		logger:   logger,
		dispatch: dispatch,
		connect:  NewStdDBusClient,
		identity: identity,
		quit:     quit,
	}
}

// Bind attaches the player the service controls
func (m *MPRIS) Bind(p Player) {
	m.mu.Lock()
	m.player = p
	m.mu.Unlock()
}

// Start connects to the session bus, exports the interfaces and claims the bus name
func (m *MPRIS) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	conn, err := m.connect()
	if err != nil {
		return fmt.Errorf("session bus connection failed: %w", err)
	}

	exports := []struct {
		v     any
		iface string
	}{
		{&rootObject{m: m}, rootIface},
		{&playerObject{m: m}, playerIface},
		{&propsObject{m: m}, propsIface},
	}
	for _, e := range exports {
		if err := conn.Export(e.v, ObjectPath, e.iface); err != nil {
			return multierr.Append(fmt.Errorf("failed to export %s: %w", e.iface, err), conn.Close())
		}
	}

	name, err := claimName(conn)
	if err != nil {
		return multierr.Append(err, conn.Close())
	}

	m.mu.Lock()
	m.conn = conn
	m.name = name
	m.running = true
	m.mu.Unlock()

	m.logger.Info("MPRIS service started", zap.String("name", name))
	return nil
}

// claimName takes the vidcore bus name, falling back to a per-process instance name
func claimName(conn DBusClient) (string, error) {
	candidates := []string{BusName, fmt.Sprintf("%s.instance%d", BusName, os.Getpid())}

	for _, name := range candidates {
		reply, err := conn.RequestName(name, dbus.NameFlagDoNotQueue)
		if err != nil {
			return "", fmt.Errorf("failed to request %s: %w", name, err)
		}
		if reply == dbus.RequestNameReplyPrimaryOwner {
			return name, nil
		}
	}
	return "", fmt.Errorf("bus name %s is already taken", BusName)
}

// Stop releases the bus name and closes the connection
func (m *MPRIS) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	conn, name := m.conn, m.name
	m.conn = nil
	m.running = false
	m.mu.Unlock()

	var errs error
	if _, err := conn.ReleaseName(name); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("failed to release %s: %w", name, err))
	}
	errs = multierr.Append(errs, conn.Close())

	m.logger.Info("MPRIS service stopped")
	return errs
}

// Emit turns player events into MPRIS signals. It runs on the dispatcher.
func (m *MPRIS) Emit(ev domain.Event) {
	m.mu.RLock()
	conn, p := m.conn, m.player
	m.mu.RUnlock()

	if conn == nil || p == nil {
		return
	}

	switch ev.Name {
	case domain.EventSeekComplete:
		m.signal(conn, playerIface+".Seeked", ev.Time.Microseconds())
	case domain.EventVolumeSet, domain.EventMuted, domain.EventUnmuted:
		m.propertiesChanged(conn, map[string]dbus.Variant{"Volume": dbus.MakeVariant(volume(p))})
	case domain.EventReady, domain.EventPlaybackStart, domain.EventPaused, domain.EventFinished, domain.EventError:
		m.publishStatus(conn, p)
	}
}

func (m *MPRIS) publishStatus(conn DBusClient, p Player) {
	m.propertiesChanged(conn, map[string]dbus.Variant{
		"PlaybackStatus": dbus.MakeVariant(status(p.State())),
		"Metadata":       dbus.MakeVariant(metadata(p)),
	})
}

func (m *MPRIS) propertiesChanged(conn DBusClient, changed map[string]dbus.Variant) {
	m.signal(conn, propsIface+".PropertiesChanged", playerIface, changed, []string{})
}

func (m *MPRIS) signal(conn DBusClient, name string, values ...any) {
	if err := conn.Emit(ObjectPath, name, values...); err != nil {
		m.logger.Warn("Failed to emit MPRIS signal", zap.String("signal", name), zap.Error(err))
	}
}

// call runs fn against the bound player on the dispatcher
func (m *MPRIS) call(fn func(p Player)) *dbus.Error {
	m.mu.RLock()
	p := m.player
	m.mu.RUnlock()

	if p == nil {
		return dbus.MakeFailedError(fmt.Errorf("no player attached"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	if err := m.dispatch.Do(ctx, func() { fn(p) }); err != nil {
		m.logger.Warn("MPRIS call not delivered", zap.Error(err))
		return dbus.MakeFailedError(err)
	}
	return nil
}

// command runs a transport call and publishes the resulting status, which
// covers transitions that emit no player event
func (m *MPRIS) command(fn func(p Player)) *dbus.Error {
	return m.call(func(p Player) {
		fn(p)

		m.mu.RLock()
		conn := m.conn
		m.mu.RUnlock()
		if conn != nil {
			m.publishStatus(conn, p)
		}
	})
}

func (m *MPRIS) properties(p Player, iface string) (map[string]dbus.Variant, bool) {
	switch iface {
	case rootIface:
		return map[string]dbus.Variant{
			"CanQuit":             dbus.MakeVariant(m.quit != nil),
			"CanRaise":            dbus.MakeVariant(false),
			"HasTrackList":        dbus.MakeVariant(false),
			"Identity":            dbus.MakeVariant(m.identity),
			"SupportedUriSchemes": dbus.MakeVariant([]string{"file", "http", "https", "rtsp", "rtmp"}),
			"SupportedMimeTypes":  dbus.MakeVariant([]string{"video/mp4", "video/webm", "video/x-matroska", "application/x-mpegURL"}),
		}, true
	case playerIface:
		hasSource := !p.Source().IsEmpty()
		return map[string]dbus.Variant{
			"PlaybackStatus": dbus.MakeVariant(status(p.State())),
			"Rate":           dbus.MakeVariant(1.0),
			"MinimumRate":    dbus.MakeVariant(1.0),
			"MaximumRate":    dbus.MakeVariant(1.0),
			"Metadata":       dbus.MakeVariant(metadata(p)),
			"Volume":         dbus.MakeVariant(volume(p)),
			"Position":       dbus.MakeVariant(p.CurrentTime().Microseconds()),
			"CanGoNext":      dbus.MakeVariant(false),
			"CanGoPrevious":  dbus.MakeVariant(false),
			"CanPlay":        dbus.MakeVariant(hasSource),
			"CanPause":       dbus.MakeVariant(hasSource),
			"CanSeek":        dbus.MakeVariant(p.Duration() > 0),
			"CanControl":     dbus.MakeVariant(true),
		}, true
	default:
		return nil, false
	}
}

func status(s playback.State) string {
	switch s {
	case playback.StatePlaying:
		return "Playing"
	case playback.StatePaused:
		return "Paused"
	default:
		return "Stopped"
	}
}

func volume(p Player) float64 {
	if p.Muted() {
		return 0
	}
	return p.Volume()
}

func metadata(p Player) map[string]dbus.Variant {
	src := p.Source()
	if src.IsEmpty() {
		return map[string]dbus.Variant{"mpris:trackid": dbus.MakeVariant(noTrackPath)}
	}

	meta := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(trackPath),
		"xesam:url":     dbus.MakeVariant(src.String()),
	}
	if src.Kind != domain.SourceNative {
		meta["xesam:url"] = dbus.MakeVariant(src.Location)
	}
	if d := p.Duration(); d > 0 {
		meta["mpris:length"] = dbus.MakeVariant(d.Microseconds())
	}
	return meta
}

// rootObject implements org.mpris.MediaPlayer2
type rootObject struct {
	m *MPRIS
}

func (o *rootObject) Raise() *dbus.Error {
	return nil
}

func (o *rootObject) Quit() *dbus.Error {
	if o.m.quit == nil {
		return dbus.MakeFailedError(fmt.Errorf("quit is not supported"))
	}
	o.m.quit()
	return nil
}

// playerObject implements org.mpris.MediaPlayer2.Player
type playerObject struct {
	m *MPRIS
}

func (o *playerObject) Play() *dbus.Error {
	return o.m.command(func(p Player) { p.Play() })
}

func (o *playerObject) Pause() *dbus.Error {
	return o.m.command(func(p Player) { p.Pause() })
}

func (o *playerObject) PlayPause() *dbus.Error {
	return o.m.command(func(p Player) {
		if p.State() == playback.StatePlaying {
			p.Pause()
		} else {
			p.Play()
		}
	})
}

func (o *playerObject) Stop() *dbus.Error {
	return o.m.command(func(p Player) { p.Stop() })
}

func (o *playerObject) Next() *dbus.Error {
	return nil
}

func (o *playerObject) Previous() *dbus.Error {
	return nil
}

// Seek moves relative to the current position; offset is in microseconds.
// Seeking past the end stops playback. The name and signature are fixed by
// the MPRIS Player interface, so vet's io.Seeker check does not apply.
func (o *playerObject) Seek(offset int64) *dbus.Error {
	return o.m.command(func(p Player) {
		target := p.CurrentTime() + time.Duration(offset)*time.Microsecond
		if d := p.Duration(); d > 0 && target > d {
			p.Stop()
			return
		}
		p.SeekTo(max(target, 0))
	})
}

// SetPosition seeks to an absolute position in microseconds for the current track
func (o *playerObject) SetPosition(track dbus.ObjectPath, position int64) *dbus.Error {
	return o.m.call(func(p Player) {
		pos := time.Duration(position) * time.Microsecond
		if track != trackPath || pos < 0 {
			return
		}
		if d := p.Duration(); d > 0 && pos > d {
			return
		}
		p.SeekTo(pos)
	})
}

// OpenUri replaces the source and starts playing it
func (o *playerObject) OpenUri(uri string) *dbus.Error {
	src, err := source.Resolve(uri)
	if err != nil {
		return dbus.MakeFailedError(err)
	}
	return o.m.command(func(p Player) {
		p.SetSource(src)
		p.Play()
	})
}

// propsObject implements org.freedesktop.DBus.Properties
type propsObject struct {
	m *MPRIS
}

func (o *propsObject) Get(iface, prop string) (dbus.Variant, *dbus.Error) {
	all, derr := o.GetAll(iface)
	if derr != nil {
		return dbus.Variant{}, derr
	}
	v, ok := all[prop]
	if !ok {
		return dbus.Variant{}, dbus.NewError("org.freedesktop.DBus.Error.UnknownProperty", []any{prop})
	}
	return v, nil
}

func (o *propsObject) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	var (
		props map[string]dbus.Variant
		known bool
	)
	if derr := o.m.call(func(p Player) { props, known = o.m.properties(p, iface) }); derr != nil {
		return nil, derr
	}
	if !known {
		return nil, dbus.NewError("org.freedesktop.DBus.Error.UnknownInterface", []any{iface})
	}
	return props, nil
}

// Set accepts Volume only; every other property is read-only
func (o *propsObject) Set(iface, prop string, value dbus.Variant) *dbus.Error {
	if iface != playerIface || prop != "Volume" {
		return dbus.NewError("org.freedesktop.DBus.Error.PropertyReadOnly", []any{prop})
	}

	level, ok := value.Value().(float64)
	if !ok {
		return dbus.NewError("org.freedesktop.DBus.Error.InvalidArgs", []any{"Volume must be a double"})
	}
	return o.m.call(func(p Player) { p.SetVolume(lo.Clamp(level, 0, 1)) })
}
