// Package config loads the application configuration from flags, the
// environment and an optional driveassist.yaml.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/soar/DriveAssist/backend/internal/device"
)

const (
	appName   = "driveassist"
	envPrefix = "DRIVEASSIST"
)

// Device selects the virtual joystick.
type Device struct {
	Backend string `mapstructure:"backend"`
	ID      uint   `mapstructure:"id"`
	Path    string `mapstructure:"path"`
	Name    string `mapstructure:"name"`
}

// Failsafe configures device error handling.
type Failsafe struct {
	Threshold int `mapstructure:"threshold"`
}

// Queue configures the input event queue.
type Queue struct {
	Capacity int `mapstructure:"capacity"`
}

// Input selects the input sources. Keyboard and Mouse are evdev device
// paths; empty disables the source.
type Input struct {
	Keyboard string `mapstructure:"keyboard"`
	Mouse    string `mapstructure:"mouse"`
	Wheel    bool   `mapstructure:"wheel"`
}

// Profiles configures the profile directory watcher.
type Profiles struct {
	Watch    bool          `mapstructure:"watch"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// Config is the full application configuration.
type Config struct {
	Listen        string   `mapstructure:"listen"`
	TickRate      int      `mapstructure:"tick_rate"`
	ProfilesDir   string   `mapstructure:"profiles_dir"`
	VehiclesDir   string   `mapstructure:"vehicles_dir"`
	RecordingsDir string   `mapstructure:"recordings_dir"`
	Profile       string   `mapstructure:"profile"`
	LogLevel      string   `mapstructure:"log_level"`
	DevLog        bool     `mapstructure:"dev_log"`
	Tray          bool     `mapstructure:"tray"`
	Device        Device   `mapstructure:"device"`
	Failsafe      Failsafe `mapstructure:"failsafe"`
	Queue         Queue    `mapstructure:"queue"`
	Input         Input    `mapstructure:"input"`
	Profiles      Profiles `mapstructure:"profiles"`

	// ConfigFile is the file that was read, if any.
	ConfigFile string `mapstructure:"-"`
}

// DeviceConfig converts the device section for device.Open.
func (c *Config) DeviceConfig() device.Config {
	return device.Config{
		Backend: device.Backend(c.Device.Backend),
		ID:      c.Device.ID,
		Path:    c.Device.Path,
		Name:    c.Device.Name,
	}
}

// URL is the visualizer address for a browser.
func (c *Config) URL() string {
	addr := c.Listen
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var err error
	if c.Listen == "" {
		err = multierr.Append(err, errors.New("listen: must not be empty"))
	}
	if c.TickRate < 1 || c.TickRate > 1000 {
		err = multierr.Append(err, errors.Errorf("tick_rate: %d not in [1,1000]", c.TickRate))
	}
	if c.Failsafe.Threshold < 1 {
		err = multierr.Append(err, errors.Errorf("failsafe.threshold: %d must be positive", c.Failsafe.Threshold))
	}
	if c.Queue.Capacity < 1 {
		err = multierr.Append(err, errors.Errorf("queue.capacity: %d must be positive", c.Queue.Capacity))
	}
	switch device.Backend(c.Device.Backend) {
	case device.BackendAuto, device.BackendVJoy, device.BackendUinput, device.BackendNull:
	default:
		err = multierr.Append(err, errors.Errorf("device.backend: unknown backend %q", c.Device.Backend))
	}
	if c.Device.ID < 1 || c.Device.ID > 16 {
		err = multierr.Append(err, errors.Errorf("device.id: %d not in [1,16]", c.Device.ID))
	}
	if c.Profiles.Debounce < 0 {
		err = multierr.Append(err, errors.Errorf("profiles.debounce: %s is negative", c.Profiles.Debounce))
	}
	for key, dir := range map[string]string{
		"profiles_dir":   c.ProfilesDir,
		"vehicles_dir":   c.VehiclesDir,
		"recordings_dir": c.RecordingsDir,
	} {
		if dir == "" {
			err = multierr.Append(err, errors.Errorf("%s: must not be empty", key))
		}
	}
	return errors.Wrap(err, "invalid config")
}

func baseDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, appName)
}

func setDefaults(v *viper.Viper) {
	base := baseDir()
	v.SetDefault("listen", ":8080")
	v.SetDefault("tick_rate", 60)
	v.SetDefault("profiles_dir", filepath.Join(base, "profiles"))
	v.SetDefault("vehicles_dir", filepath.Join(base, "vehicles"))
	v.SetDefault("recordings_dir", filepath.Join(base, "recordings"))
	v.SetDefault("profile", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("dev_log", false)
	v.SetDefault("tray", runtime.GOOS == "windows")
	v.SetDefault("device.backend", string(device.BackendAuto))
	v.SetDefault("device.id", 1)
	v.SetDefault("device.path", "/dev/uinput")
	v.SetDefault("device.name", "DriveAssist Virtual Wheel")
	v.SetDefault("failsafe.threshold", 30)
	v.SetDefault("queue.capacity", 256)
	v.SetDefault("input.keyboard", "")
	v.SetDefault("input.mouse", "")
	v.SetDefault("input.wheel", false)
	v.SetDefault("profiles.watch", true)
	v.SetDefault("profiles.debounce", 250*time.Millisecond)
}

// flag name -> config key
var flagKeys = map[string]string{
	"listen":             "listen",
	"tick-rate":          "tick_rate",
	"profiles-dir":       "profiles_dir",
	"vehicles-dir":       "vehicles_dir",
	"recordings-dir":     "recordings_dir",
	"profile":            "profile",
	"log-level":          "log_level",
	"dev-log":            "dev_log",
	"tray":               "tray",
	"device":             "device.backend",
	"device-id":          "device.id",
	"failsafe-threshold": "failsafe.threshold",
	"keyboard":           "input.keyboard",
	"mouse":              "input.mouse",
	"wheel":              "input.wheel",
	"watch":              "profiles.watch",
}

// NewFlagSet declares the command line flags. Defaults shown in help come
// from viper, so flag defaults here are zero values.
func NewFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	fs.String("config", "", "config file (default: ./driveassist.yaml or the user config dir)")
	fs.String("listen", "", "visualizer listen address")
	fs.Int("tick-rate", 0, "control loop rate in Hz")
	fs.String("profiles-dir", "", "profile directory")
	fs.String("vehicles-dir", "", "vehicle data directory")
	fs.String("recordings-dir", "", "recording directory")
	fs.StringP("profile", "p", "", "active profile name")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.Bool("dev-log", false, "development logging")
	fs.Bool("tray", false, "show the system tray icon")
	fs.String("device", "", "virtual joystick backend: auto, vjoy, uinput or null")
	fs.Uint("device-id", 0, "vJoy device number")
	fs.Int("failsafe-threshold", 0, "consecutive device failures before failsafe")
	fs.String("keyboard", "", "evdev keyboard device path")
	fs.String("mouse", "", "evdev mouse device path")
	fs.Bool("wheel", false, "read wheels and gamepads through SDL3 (builds tagged sdl)")
	fs.Bool("watch", false, "reload profiles when their files change")
	return fs
}

// Load parses args, merges the config file and environment, and validates
// the result. The remaining positional arguments are returned.
func Load(args []string) (*Config, []string, error) {
	fs := NewFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, nil, errors.Wrap(err, "parsing flags")
	}

	v := viper.New()
	setDefaults(v)
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, nil, errors.Wrapf(err, "binding flag %s", name)
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file, _ := fs.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(appName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(baseDir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, errors.Wrap(err, "reading config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, errors.Wrap(err, "decoding config")
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, fs.Args(), nil
}
