// ABOUTME: Configuration types and loading for spyglass.
// ABOUTME: Defaults, then an optional YAML file, then SPYGLASS_* environment overrides.

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Stream    StreamConfig    `yaml:"stream"`
	Submit    SubmitConfig    `yaml:"submit"`
	Animation AnimationConfig `yaml:"animation"`
	Store     StoreConfig     `yaml:"store"`
	History   HistoryConfig   `yaml:"history"`
	Replay    ReplayConfig    `yaml:"replay"`
	Monitor   MonitorConfig   `yaml:"monitor"`
}

// StreamConfig covers the SSE subscription and reconnect policy.
type StreamConfig struct {
	URL            string `yaml:"url" envconfig:"STREAM_URL"`
	Token          string `yaml:"token" envconfig:"STREAM_TOKEN"`
	BackoffBaseMS  int    `yaml:"backoff_base_ms" envconfig:"BACKOFF_BASE_MS"`
	BackoffCapMS   int    `yaml:"backoff_cap_ms" envconfig:"BACKOFF_CAP_MS"`
	MaxReconnects  int    `yaml:"max_reconnects" envconfig:"MAX_RECONNECTS"`
	CapturePath    string `yaml:"capture_path" envconfig:"CAPTURE_PATH"`
	CaptureEnabled bool   `yaml:"capture_enabled" envconfig:"CAPTURE_ENABLED"`
}

// SubmitConfig covers the message submission endpoint.
type SubmitConfig struct {
	URL       string `yaml:"url" envconfig:"SUBMIT_URL"`
	ChannelID string `yaml:"channel_id" envconfig:"CHANNEL_ID"`
}

// AnimationConfig covers stage-flow playback pacing.
type AnimationConfig struct {
	CollectWindowMS int `yaml:"collect_window_ms" envconfig:"COLLECT_WINDOW_MS"`
	LaneDelayMS     int `yaml:"lane_delay_ms" envconfig:"LANE_DELAY_MS"`
}

// StoreConfig covers reconstruction-store retention and completion rules.
type StoreConfig struct {
	MaxTasks  int      `yaml:"max_tasks" envconfig:"MAX_TASKS"`
	Sentinels []string `yaml:"sentinels" envconfig:"SENTINELS"`
	Palette   []string `yaml:"palette" envconfig:"PALETTE"`
}

// HistoryConfig covers the SQLite archive.
type HistoryConfig struct {
	Path    string `yaml:"path" envconfig:"HISTORY_PATH"`
	Enabled bool   `yaml:"enabled" envconfig:"HISTORY_ENABLED"`
}

// ReplayConfig covers the local simulator server.
type ReplayConfig struct {
	Addr         string `yaml:"addr" envconfig:"REPLAY_ADDR"`
	ScenarioPath string `yaml:"scenario_path" envconfig:"SCENARIO_PATH"`
}

// MonitorConfig covers the HTML dashboard.
type MonitorConfig struct {
	Addr string `yaml:"addr" envconfig:"MONITOR_ADDR"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Stream: StreamConfig{
			URL:           "http://127.0.0.1:8383/v1/stream",
			BackoffBaseMS: 1000,
			BackoffCapMS:  30000,
			MaxReconnects: 10,
			CapturePath:   "spyglass-capture.ndjson",
		},
		Submit: SubmitConfig{
			URL:       "http://127.0.0.1:8383/v1/message",
			ChannelID: "spyglass",
		},
		Animation: AnimationConfig{
			CollectWindowMS: 150,
			LaneDelayMS:     800,
		},
		Store: StoreConfig{
			MaxTasks: 200,
		},
		History: HistoryConfig{
			Path: "spyglass-history.db",
		},
		Replay: ReplayConfig{
			Addr: "127.0.0.1:8383",
		},
		Monitor: MonitorConfig{
			Addr: "127.0.0.1:8384",
		},
	}
}

// Load builds the effective configuration: defaults, overlaid by the YAML
// file at path (skipped when path is empty or the file does not exist),
// overlaid by SPYGLASS_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Fall through to env overrides.
		case err != nil:
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	if err := envconfig.Process("spyglass", &cfg); err != nil {
		return Config{}, fmt.Errorf("applying environment overrides: %w", err)
	}
	return cfg, nil
}

// BackoffBase returns the reconnect base delay as a duration.
func (c StreamConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMS) * time.Millisecond
}

// BackoffCap returns the reconnect delay cap as a duration.
func (c StreamConfig) BackoffCap() time.Duration {
	return time.Duration(c.BackoffCapMS) * time.Millisecond
}

// CollectWindow returns the animation debounce window as a duration.
func (c AnimationConfig) CollectWindow() time.Duration {
	return time.Duration(c.CollectWindowMS) * time.Millisecond
}

// LaneDelay returns the inter-lane playback delay as a duration.
func (c AnimationConfig) LaneDelay() time.Duration {
	return time.Duration(c.LaneDelayMS) * time.Millisecond
}
