// Package config provides configuration management for Kathakali.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ayusman/kathakali/internal/app"
	"github.com/ayusman/kathakali/internal/capture"
	"github.com/ayusman/kathakali/internal/detector"
	"github.com/ayusman/kathakali/internal/rig"
)

// EnvPrefix prefixes every environment override, e.g. KATHAKALI_SERVER_ADDR.
const EnvPrefix = "KATHAKALI"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig      `mapstructure:"server"`
	Camera   CameraConfig      `mapstructure:"camera"`
	Detector DetectorConfig    `mapstructure:"detector"`
	Avatar   AvatarConfig      `mapstructure:"avatar"`
	Render   RenderConfig      `mapstructure:"render"`
	Mapping  map[string]string `mapstructure:"mapping"`
	Tracking TrackingConfig    `mapstructure:"tracking"`
	Store    StoreConfig       `mapstructure:"store"`
	Log      LogConfig         `mapstructure:"log"`
	Tray     TrayConfig        `mapstructure:"tray"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	StaticDir      string        `mapstructure:"static_dir"`
	StreamInterval time.Duration `mapstructure:"stream_interval"`
}

// CameraConfig configures capture and the preview stream.
type CameraConfig struct {
	Device          int     `mapstructure:"device"`
	Width           int     `mapstructure:"width"`
	Height          int     `mapstructure:"height"`
	FPS             int     `mapstructure:"fps"`
	MotionThreshold float64 `mapstructure:"motion_threshold"` // 0 disables gating
	MotionMaxSkip   int     `mapstructure:"motion_max_skip"`
	PreviewQuality  int     `mapstructure:"preview_quality"` // 0 disables the preview
}

// DetectorConfig configures the face model service.
type DetectorConfig struct {
	ModelPath     string  `mapstructure:"model_path"`
	MinConfidence float64 `mapstructure:"min_confidence"`
	JPEGQuality   int     `mapstructure:"jpeg_quality"`
	Script        string  `mapstructure:"script"`
	Python        string  `mapstructure:"python"`
}

// AvatarConfig selects the animation target.
type AvatarConfig struct {
	// Model is a glTF/GLB asset. Empty uses the built-in ARKit channel set.
	Model string `mapstructure:"model"`
}

// RenderConfig configures the render loop.
type RenderConfig struct {
	FPS         int     `mapstructure:"fps"`
	Smoothing   float64 `mapstructure:"smoothing"`
	Expressions bool    `mapstructure:"expressions"`
	BrowTilt    bool    `mapstructure:"brow_tilt"` // head pitch from the brows, on top of the measured pose
}

// TrackingConfig holds the tracking default used until the user toggles it.
type TrackingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// StoreConfig configures persistence.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Dir     string `mapstructure:"dir"` // empty disables the log file
	Console bool   `mapstructure:"console"`
}

// TrayConfig configures the system tray icon.
type TrayConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Dir returns the data directory, ~/.kathakali.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".kathakali"), nil
}

// New returns a viper instance carrying every default, environment
// overrides and the standard config search path. Flags are bound by the
// caller before Load.
func New() *viper.Viper {
	v := viper.New()

	dir, err := Dir()
	if err != nil {
		dir = ".kathakali"
	}

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.static_dir", "web")
	v.SetDefault("server.stream_interval", 66*time.Millisecond)

	cam := capture.DefaultConfig()
	v.SetDefault("camera.device", cam.Device)
	v.SetDefault("camera.width", cam.Width)
	v.SetDefault("camera.height", cam.Height)
	v.SetDefault("camera.fps", cam.FPS)
	v.SetDefault("camera.motion_threshold", 0.0)
	v.SetDefault("camera.motion_max_skip", 15)
	v.SetDefault("camera.preview_quality", 70)

	det := detector.DefaultConfig()
	v.SetDefault("detector.model_path", det.ModelPath)
	v.SetDefault("detector.min_confidence", det.MinConfidence)
	v.SetDefault("detector.jpeg_quality", det.JPEGQuality)
	v.SetDefault("detector.script", "")
	v.SetDefault("detector.python", "")

	v.SetDefault("avatar.model", "")

	v.SetDefault("render.fps", app.DefaultRenderFPS)
	v.SetDefault("render.smoothing", 0.0)
	v.SetDefault("render.expressions", true)
	v.SetDefault("render.brow_tilt", false)

	v.SetDefault("tracking.enabled", true)
	v.SetDefault("store.path", filepath.Join(dir, "data.db"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", filepath.Join(dir, "logs"))
	v.SetDefault("log.console", true)

	v.SetDefault("tray.enabled", false)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the config file into v and decodes the result. file overrides
// the search path; a missing file on the search path is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Render.FPS <= 0 {
		errs = append(errs, fmt.Errorf("render.fps must be positive, got %d", c.Render.FPS))
	}
	if c.Render.Smoothing < 0 {
		errs = append(errs, fmt.Errorf("render.smoothing must not be negative, got %g", c.Render.Smoothing))
	}
	if c.Camera.FPS <= 0 {
		errs = append(errs, fmt.Errorf("camera.fps must be positive, got %d", c.Camera.FPS))
	}
	if c.Camera.PreviewQuality < 0 || c.Camera.PreviewQuality > 100 {
		errs = append(errs, fmt.Errorf("camera.preview_quality must be within 0-100, got %d", c.Camera.PreviewQuality))
	}
	if c.Detector.JPEGQuality <= 0 || c.Detector.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("detector.jpeg_quality must be within 1-100, got %d", c.Detector.JPEGQuality))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	return errors.Join(errs...)
}

// ExpressionSet returns the derived bone expressions to apply.
func (c *Config) ExpressionSet() []rig.Expression {
	var out []rig.Expression
	if c.Render.Expressions {
		out = rig.DefaultExpressions()
	}
	if c.Render.BrowTilt {
		out = append(out, rig.BrowTiltExpression())
	}
	return out
}

// CaptureSettings returns the camera settings.
func (c *Config) CaptureSettings() capture.Config {
	return capture.Config{
		Device: c.Camera.Device,
		Width:  c.Camera.Width,
		Height: c.Camera.Height,
		FPS:    c.Camera.FPS,
	}
}

// DetectorSettings returns the face model settings on top of the streaming
// defaults.
func (c *Config) DetectorSettings() detector.Config {
	d := detector.DefaultConfig()
	if c.Detector.ModelPath != "" {
		d.ModelPath = c.Detector.ModelPath
	}
	d.MinConfidence = c.Detector.MinConfidence
	d.JPEGQuality = c.Detector.JPEGQuality
	d.Script = c.Detector.Script
	d.Python = c.Detector.Python
	return d
}

// NameOverrides returns the configured mapping keyed by detector name.
// Config keys come back lower-cased, so keys matching a standard blendshape
// name case-insensitively are restored to its canonical spelling.
func (c *Config) NameOverrides() map[string]string {
	out := make(map[string]string, len(c.Mapping))
	for source, target := range c.Mapping {
		for _, name := range rig.ARKitNames {
			if strings.EqualFold(source, name) {
				source = name
				break
			}
		}
		out[source] = target
	}
	return out
}
