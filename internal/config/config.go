// Package config loads application settings from defaults, an optional
// TOML file and VIDCORE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/genricoloni/vidcore/internal/domain"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	// Name is the config file stem and the environment prefix
	Name = "vidcore"

	defaultSnapshotDir = "/tmp/vidcore"
)

// EnvKeyReplacer maps config keys onto environment variable names
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Field describes one configuration key
type Field struct {
	Key         string
	Value       any
	Description string
}

// Env returns the environment variable overriding the field
func (f Field) Env() string {
	return strings.ToUpper(Name + "_" + EnvKeyReplacer.Replace(f.Key))
}

// Defaults lists every key with its factory value
var Defaults = []Field{
	{"player.autoplay", false, "Start playback as soon as the video is ready"},
	{"player.loop", false, "Restart from the beginning when the video ends"},
	{"player.muted", false, "Start with audio muted"},
	{"player.fill", false, "Scale to cover the surface instead of fitting inside it"},
	{"player.mode", "PORTRAIT", "Layout orientation, PORTRAIT or LANDSCAPE"},
	{"player.observe_current_time", false, "Emit currentTimeUpdated while playing"},
	{"player.time_interval", "500ms", "Interval between currentTimeUpdated events"},
	{"player.controls", true, "Expose media controls over MPRIS"},
	{"log.debug", false, "Enable debug logging"},
	{"mpv.binary", "", "Path to the mpv binary; searched for when empty"},
	{"mpv.probe", true, "Probe URL sources over HTTP before opening them"},
	{"mpv.resource_dir", "", "Directory res:// sources are read from; the working directory when empty"},
	{"surface.width", 0, "Surface width; the primary display when zero"},
	{"surface.height", 0, "Surface height; the primary display when zero"},
	{"surface.blur_backdrop", true, "Fill letterbox bars with a blurred copy of the frame"},
	{"snapshot.dir", defaultSnapshotDir, "Directory for rendered posters"},
}

// SearchPaths returns the directories a config file is looked up in
func SearchPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, Name))
	}
	return paths
}

// NewViper builds a viper instance reading vidcore.toml from fs. A missing
// file is not an error.
func NewViper(fs afero.Fs, searchPaths ...string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName(Name)
	v.SetConfigType("toml")
	v.SetFs(fs)
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(Name)
	v.SetEnvKeyReplacer(EnvKeyReplacer)
	v.AutomaticEnv()

	v.SetTypeByDefaultValue(true)
	for _, f := range Defaults {
		v.SetDefault(f.Key, f.Value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return v, nil
}

// AppConfig holds application configuration
type AppConfig struct {
	logger *zap.Logger
	v      *viper.Viper
}

var _ domain.Config = (*AppConfig)(nil)

// NewAppConfig creates a new application configuration instance
func NewAppConfig(logger *zap.Logger, v *viper.Viper) *AppConfig {
	c := &AppConfig{logger: logger, v: v}

	logger.Info("Configuration loaded",
		zap.String("file", v.ConfigFileUsed()),
		zap.String("snapshotDir", c.GetSnapshotDir()),
		zap.Bool("debug", c.Debug()))

	return c
}

// PlayerOptions returns the playback settings
func (c *AppConfig) PlayerOptions() domain.PlaybackOptions {
	mode, err := domain.ParseOrientation(c.v.GetString("player.mode"))
	if err != nil {
		c.logger.Warn("Invalid player mode, using PORTRAIT", zap.Error(err))
	}

	interval := c.v.GetDuration("player.time_interval")
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	return domain.PlaybackOptions{
		Autoplay:           c.v.GetBool("player.autoplay"),
		Loop:               c.v.GetBool("player.loop"),
		Muted:              c.v.GetBool("player.muted"),
		Controls:           c.v.GetBool("player.controls"),
		ObserveCurrentTime: c.v.GetBool("player.observe_current_time"),
		TimeInterval:       interval,
		Spec: domain.TransformSpec{
			Orientation: mode,
			Fill:        c.v.GetBool("player.fill"),
		},
		Debug: c.Debug(),
	}
}

// GetSnapshotDir returns the directory for rendered posters
func (c *AppConfig) GetSnapshotDir() string {
	return expandPath(c.v.GetString("snapshot.dir"))
}

// GetMPVBinary returns the configured mpv path, empty to search for it
func (c *AppConfig) GetMPVBinary() string {
	return expandPath(c.v.GetString("mpv.binary"))
}

// GetResourceDir returns the directory bundled res:// media lives in
func (c *AppConfig) GetResourceDir() string {
	return expandPath(c.v.GetString("mpv.resource_dir"))
}

// GetProbe reports whether URL sources are probed before opening
func (c *AppConfig) GetProbe() bool {
	return c.v.GetBool("mpv.probe")
}

// GetSurfaceSize returns the configured surface size; zero means the display size
func (c *AppConfig) GetSurfaceSize() domain.Size {
	return domain.Size{Width: c.v.GetInt("surface.width"), Height: c.v.GetInt("surface.height")}
}

// GetBlurBackdrop reports whether letterbox bars are filled with a blurred frame
func (c *AppConfig) GetBlurBackdrop() bool {
	return c.v.GetBool("surface.blur_backdrop")
}

// Debug reports whether debug logging is enabled
func (c *AppConfig) Debug() bool {
	return c.v.GetBool("log.debug")
}

// Settings returns every known key with its effective value, sorted by key
func (c *AppConfig) Settings() map[string]any {
	out := make(map[string]any, len(Defaults))
	for _, f := range Defaults {
		out[f.Key] = c.v.Get(f.Key)
	}
	return out
}

// Keys returns the known keys in order
func Keys() []string {
	keys := make([]string, 0, len(Defaults))
	for _, f := range Defaults {
		keys = append(keys, f.Key)
	}
	sort.Strings(keys)
	return keys
}

// expandPath expands environment variables and a leading ~
func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if len(p) > 0 && p[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	return p
}
