// Package config loads the skeet configuration file and exposes it as
// typed settings for the commands.
package config

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/spf13/viper"
)

// Rect is an x/y/width/height block in the config file.
type Rect struct {
	X      int `mapstructure:"x"`
	Y      int `mapstructure:"y"`
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// Bounds converts the block to an image.Rectangle. A zero-size block
// yields the zero rectangle, which callers treat as "unset".
func (r Rect) Bounds() image.Rectangle {
	if r.Width <= 0 || r.Height <= 0 {
		return image.Rectangle{}
	}
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Capture selects and shapes the frame source.
type Capture struct {
	Source           string `mapstructure:"source"` // screen or browser
	URL              string `mapstructure:"url"`    // browser page
	Region           Rect   `mapstructure:"region"`
	IgnoreZones      []Rect `mapstructure:"ignore_zones"`
	CursorMaskRadius int    `mapstructure:"cursor_mask_radius"`
}

// Input selects the keystroke/pointer sink.
type Input struct {
	Sink       string `mapstructure:"sink"` // native or serial
	SerialPort string `mapstructure:"serial_port"`
	BaudRate   int    `mapstructure:"baud_rate"`
}

// Keys binds the game and operator keys.
type Keys struct {
	Commit   string `mapstructure:"commit"`
	Interact string `mapstructure:"interact"`
	PanLeft  string `mapstructure:"pan_left"`
	PanRight string `mapstructure:"pan_right"`
	Start    string `mapstructure:"start"`
	Stop     string `mapstructure:"stop"`
	Pause    string `mapstructure:"pause"`
}

// Detect points the detectors at their assets.
type Detect struct {
	TemplateDir  string `mapstructure:"template_dir"`
	ModelPath    string `mapstructure:"model_path"`
	ModelConfig  string `mapstructure:"model_config"`
	ModelClasses string `mapstructure:"model_classes"`
	ModelClass   string `mapstructure:"model_class"`
}

// Replay names the recorded attack sequence and its store.
type Replay struct {
	Path     string `mapstructure:"path"`
	Sequence string `mapstructure:"sequence"`
}

// Dashboard configures the web UI.
type Dashboard struct {
	Enabled   bool   `mapstructure:"enabled"`
	Port      int    `mapstructure:"port"`
	StaticDir string `mapstructure:"static_dir"`
}

// Notify configures the event sinks. Events limits which lifecycle
// event types are delivered; empty means all of them.
type Notify struct {
	WebhookURL   string   `mapstructure:"webhook_url"`
	WebsocketURL string   `mapstructure:"websocket_url"`
	Audio        bool     `mapstructure:"audio"`
	MinGapMs     int      `mapstructure:"min_gap_ms"`
	Events       []string `mapstructure:"events"`
}

// Stats configures session counter persistence.
type Stats struct {
	MySQLDSN string `mapstructure:"mysql_dsn"`
}

// Config is the root of the skeet configuration file.
type Config struct {
	LogLevel string `mapstructure:"log_level"`
	Detector string `mapstructure:"detector"`
	Profile  string `mapstructure:"profile"` // default, cautious, aggressive
	HUD      bool   `mapstructure:"hud"`
	Tray     bool   `mapstructure:"tray"`

	Capture   Capture   `mapstructure:"capture"`
	Input     Input     `mapstructure:"input"`
	Keys      Keys      `mapstructure:"keys"`
	Detect    Detect    `mapstructure:"detect"`
	Replay    Replay    `mapstructure:"replay"`
	Dashboard Dashboard `mapstructure:"dashboard"`
	Notify    Notify    `mapstructure:"notify"`
	Stats     Stats     `mapstructure:"stats"`
}

// Load reads the configuration. path may be empty, in which case
// skeet.yaml is searched in the working directory and ~/.skeet.
// Environment variables prefixed SKEET_ override file values, with
// dots replaced by underscores (SKEET_DASHBOARD_PORT).
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("skeet")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.skeet")
	}

	v.SetEnvPrefix("SKEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
		// No file is fine; defaults plus environment apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("detector", "hybrid")
	v.SetDefault("profile", "default")
	v.SetDefault("hud", false)
	v.SetDefault("tray", false)

	v.SetDefault("capture.source", "screen")
	v.SetDefault("capture.cursor_mask_radius", 180)

	v.SetDefault("input.sink", "native")
	v.SetDefault("input.baud_rate", 115200)

	v.SetDefault("keys.commit", "1")
	v.SetDefault("keys.interact", "e")
	v.SetDefault("keys.pan_left", "left")
	v.SetDefault("keys.pan_right", "right")
	v.SetDefault("keys.start", "f1")
	v.SetDefault("keys.stop", "f2")
	v.SetDefault("keys.pause", "f3")

	v.SetDefault("detect.template_dir", "templates")

	v.SetDefault("replay.path", "replays.json")
	v.SetDefault("replay.sequence", "attack")

	v.SetDefault("dashboard.enabled", true)
	v.SetDefault("dashboard.port", 8080)
	v.SetDefault("dashboard.static_dir", "web")

	v.SetDefault("notify.audio", true)
	v.SetDefault("notify.min_gap_ms", 5000)
}

func (c Config) validate() error {
	switch c.Capture.Source {
	case "screen":
	case "browser":
		if c.Capture.URL == "" {
			return fmt.Errorf("config: capture.url is required for the browser source")
		}
	default:
		return fmt.Errorf("config: unknown capture.source %q", c.Capture.Source)
	}

	switch c.Input.Sink {
	case "native":
	case "serial":
		if c.Input.SerialPort == "" {
			return fmt.Errorf("config: input.serial_port is required for the serial sink")
		}
	default:
		return fmt.Errorf("config: unknown input.sink %q", c.Input.Sink)
	}

	switch c.Profile {
	case "default", "cautious", "aggressive":
	default:
		return fmt.Errorf("config: unknown profile %q", c.Profile)
	}
	return nil
}

// IgnoreBounds converts the configured ignore zones.
func (c Capture) IgnoreBounds() []image.Rectangle {
	var zones []image.Rectangle
	for _, z := range c.IgnoreZones {
		if b := z.Bounds(); !b.Empty() {
			zones = append(zones, b)
		}
	}
	return zones
}
