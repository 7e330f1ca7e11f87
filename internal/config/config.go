package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ayusman/posetrack/internal/scheduler"
	"github.com/ayusman/posetrack/internal/skeleton"
	"github.com/ayusman/posetrack/internal/tracking"
	"github.com/spf13/viper"
)

// Feed types
const (
	FeedSynthetic = "synthetic"
	FeedReplay    = "replay"
)

// Config holds the complete application configuration
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Loop      LoopConfig      `mapstructure:"loop"`
	Tracking  TrackingConfig  `mapstructure:"tracking"`
	Skeleton  SkeletonConfig  `mapstructure:"skeleton"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Recording RecordingConfig `mapstructure:"recording"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SchedulerConfig selects the host phase that drives full updates
type SchedulerConfig struct {
	UpdatePhase string `mapstructure:"update_phase"`
}

// LoopConfig defines the built-in host loop
type LoopConfig struct {
	FrameRate int `mapstructure:"frame_rate"`
}

// TrackingConfig defines pose source settings
type TrackingConfig struct {
	Roles                  []string `mapstructure:"roles"`
	HistorySize            int      `mapstructure:"history_size"`
	PeakWindow             int      `mapstructure:"peak_window"`
	BroadcastDeviceChanges bool     `mapstructure:"broadcast_device_changes"`
	PoseChangeTolerance    float64  `mapstructure:"pose_change_tolerance"`
}

// SkeletonConfig defines skeleton source settings
type SkeletonConfig struct {
	ChangeTolerance float64 `mapstructure:"change_tolerance"`
	MotionRange     string  `mapstructure:"motion_range"`
	TransformSpace  string  `mapstructure:"transform_space"`
	SummaryType     string  `mapstructure:"summary_type"`
	OnlySummary     bool    `mapstructure:"only_summary"`
}

// FeedConfig selects where raw samples come from
type FeedConfig struct {
	Type    string `mapstructure:"type"`
	Session string `mapstructure:"session"` // session ID for replay
	Loop    bool   `mapstructure:"loop"`
}

// RecordingConfig defines session recording
type RecordingConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Name          string        `mapstructure:"name"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// StorageConfig defines the session database
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig defines the HTTP API. An empty address disables it.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables. An empty path
// searches ./posetrack.yaml and ~/.posetrack/posetrack.yaml.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("posetrack")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.posetrack")
	}
	v.SetEnvPrefix("POSETRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the built-in configuration without reading a file or the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	if err := validate(&config); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &config
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("scheduler.update_phase", scheduler.PhaseLateUpdate.String())

	v.SetDefault("loop.frame_rate", 90)

	v.SetDefault("tracking.roles", []string{tracking.RoleLeftHand.String(), tracking.RoleRightHand.String()})
	v.SetDefault("tracking.history_size", 30)
	v.SetDefault("tracking.peak_window", 10)
	v.SetDefault("tracking.broadcast_device_changes", true)
	v.SetDefault("tracking.pose_change_tolerance", math.SmallestNonzeroFloat32)

	v.SetDefault("skeleton.change_tolerance", math.SmallestNonzeroFloat32)
	v.SetDefault("skeleton.motion_range", skeleton.WithController.String())
	v.SetDefault("skeleton.transform_space", skeleton.SpaceParent.String())
	v.SetDefault("skeleton.summary_type", skeleton.FromAnimation.String())
	v.SetDefault("skeleton.only_summary", false)

	v.SetDefault("feed.type", FeedSynthetic)
	v.SetDefault("feed.session", "")
	v.SetDefault("feed.loop", true)

	v.SetDefault("recording.enabled", false)
	v.SetDefault("recording.name", "")
	v.SetDefault("recording.flush_interval", "1s")

	v.SetDefault("storage.path", "~/.posetrack/posetrack.db")

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if _, err := scheduler.ParsePhase(cfg.Scheduler.UpdatePhase); err != nil {
		return err
	}

	if cfg.Loop.FrameRate <= 0 || cfg.Loop.FrameRate > 1000 {
		return fmt.Errorf("invalid frame rate: %d", cfg.Loop.FrameRate)
	}

	if len(cfg.Tracking.Roles) == 0 {
		return fmt.Errorf("at least one tracking role is required")
	}
	seen := make(map[tracking.Role]bool)
	for _, name := range cfg.Tracking.Roles {
		r, err := tracking.ParseRole(name)
		if err != nil {
			return err
		}
		if seen[r] {
			return fmt.Errorf("duplicate tracking role %q", name)
		}
		seen[r] = true
	}
	if cfg.Tracking.HistorySize < 2 {
		return fmt.Errorf("history size must be at least 2, got %d", cfg.Tracking.HistorySize)
	}
	if cfg.Tracking.PeakWindow < 1 || cfg.Tracking.PeakWindow > cfg.Tracking.HistorySize {
		return fmt.Errorf("peak window must be between 1 and the history size, got %d", cfg.Tracking.PeakWindow)
	}
	if cfg.Tracking.PoseChangeTolerance < 0 || cfg.Skeleton.ChangeTolerance < 0 {
		return fmt.Errorf("change tolerances must not be negative")
	}

	if _, err := skeleton.ParseMotionRange(cfg.Skeleton.MotionRange); err != nil {
		return err
	}
	if _, err := skeleton.ParseTransformSpace(cfg.Skeleton.TransformSpace); err != nil {
		return err
	}
	if _, err := skeleton.ParseSummaryType(cfg.Skeleton.SummaryType); err != nil {
		return err
	}

	switch cfg.Feed.Type {
	case FeedSynthetic:
	case FeedReplay:
		if cfg.Feed.Session == "" {
			return fmt.Errorf("feed.session is required for replay")
		}
	default:
		return fmt.Errorf("unknown feed type %q", cfg.Feed.Type)
	}

	if cfg.Recording.Enabled && cfg.Recording.FlushInterval <= 0 {
		return fmt.Errorf("recording flush interval must be positive")
	}

	if cfg.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	path, err := expandHome(cfg.Storage.Path)
	if err != nil {
		return err
	}
	cfg.Storage.Path = path

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown logging format %q", cfg.Logging.Format)
	}

	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Phase returns the parsed update phase. Valid after Load.
func (c SchedulerConfig) Phase() scheduler.Phase {
	p, _ := scheduler.ParsePhase(c.UpdatePhase)
	return p
}

// ParsedRoles returns the configured roles. Valid after Load.
func (c TrackingConfig) ParsedRoles() []tracking.Role {
	roles := make([]tracking.Role, 0, len(c.Roles))
	for _, name := range c.Roles {
		if r, err := tracking.ParseRole(name); err == nil {
			roles = append(roles, r)
		}
	}
	return roles
}

// Modes returns the parsed skeleton enumerations. Valid after Load.
func (c SkeletonConfig) Modes() (skeleton.MotionRange, skeleton.TransformSpace, skeleton.SummaryType) {
	m, _ := skeleton.ParseMotionRange(c.MotionRange)
	t, _ := skeleton.ParseTransformSpace(c.TransformSpace)
	s, _ := skeleton.ParseSummaryType(c.SummaryType)
	return m, t, s
}

// FrameInterval returns the host loop period.
func (c LoopConfig) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FrameRate)
}
