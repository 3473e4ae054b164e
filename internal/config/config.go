package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tiroq/dictaphone/internal/transcript"
	"gopkg.in/yaml.v3"
)

// Engine backend names.
const (
	BackendWhisper = "whisper"
	BackendRemote  = "remote_whisper_api"
	BackendVosk    = "vosk"
)

// Config holds the daemon configuration.
type Config struct {
	Engine        EngineConfig        `yaml:"engine"`
	Capture       CaptureConfig       `yaml:"capture"`
	Output        OutputConfig        `yaml:"output"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	SentryDSN     string              `yaml:"sentry_dsn,omitempty"` // empty disables error reporting
}

// EngineConfig selects and configures the speech-to-text engines.
type EngineConfig struct {
	Backend  string        `yaml:"backend"`            // "whisper", "remote_whisper_api" or "vosk"
	Fallback string        `yaml:"fallback,omitempty"` // optional second engine
	Whisper  WhisperConfig `yaml:"whisper"`
	Remote   RemoteConfig  `yaml:"remote"`
	Vosk     VoskConfig    `yaml:"vosk"`
}

// WhisperConfig configures the local whisper.cpp engine.
type WhisperConfig struct {
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language"`
	Threads   uint   `yaml:"threads,omitempty"`
}

// RemoteConfig configures the remote Whisper HTTP engine.
type RemoteConfig struct {
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Retries        int    `yaml:"retries"`
	Model          string `yaml:"model"`
	Language       string `yaml:"language"`
}

// VoskConfig configures the vosk-server engine.
type VoskConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// CaptureConfig tunes the capture buffer.
type CaptureConfig struct {
	MaxBufferSeconds int `yaml:"max_buffer_seconds"` // 0 keeps all audio
}

// OutputConfig controls what is written after each transcription.
type OutputConfig struct {
	Dir        string   `yaml:"dir"`     // empty disables transcript files
	Formats    []string `yaml:"formats"` // "txt", "srt", "vtt"
	SaveAudio  bool     `yaml:"save_audio"`
	CopyOnStop bool     `yaml:"copy_on_stop"`
}

// NotificationsConfig controls desktop notifications.
type NotificationsConfig struct {
	Desktop bool `yaml:"desktop"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"` // empty disables the endpoint
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Backend: BackendWhisper,
			Whisper: WhisperConfig{Language: "en"},
			Remote: RemoteConfig{
				TimeoutSeconds: 120,
				Retries:        3,
				Model:          "small",
				Language:       "en",
			},
			Vosk: VoskConfig{
				URL:            "ws://localhost:2700",
				TimeoutSeconds: 60,
			},
		},
		Output: OutputConfig{
			Formats: []string{"txt"},
		},
	}
}

// Path returns ~/.config/dictaphone/config.yaml
func Path() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "dictaphone", "config.yaml")
}

// Load reads the user config, falling back to Default when it does not exist.
// The model path is then overridden by DICTAPHONE_MODEL and, if non-empty,
// modelArg, and the result is validated.
func Load(modelArg string) (*Config, error) {
	cfg, err := LoadFile(Path())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = Default()
	}

	if env := os.Getenv("DICTAPHONE_MODEL"); env != "" {
		cfg.Engine.Whisper.ModelPath = env
	}
	if modelArg != "" {
		cfg.Engine.Whisper.ModelPath = modelArg
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile parses the YAML file at path on top of Default. A missing file
// returns an error satisfying os.IsNotExist.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// BufferLimitSamples converts MaxBufferSeconds to a sample count at rate.
func (c *Config) BufferLimitSamples(rate int) int {
	if c.Capture.MaxBufferSeconds <= 0 {
		return 0
	}
	return c.Capture.MaxBufferSeconds * rate
}

// Validate checks Config for validity
func (c *Config) Validate() error {
	if err := c.validateBackend(c.Engine.Backend); err != nil {
		return fmt.Errorf("engine.backend: %w", err)
	}

	if c.Engine.Fallback != "" {
		if c.Engine.Fallback == c.Engine.Backend {
			return fmt.Errorf("engine.fallback must differ from engine.backend (%q)", c.Engine.Backend)
		}
		if err := c.validateBackend(c.Engine.Fallback); err != nil {
			return fmt.Errorf("engine.fallback: %w", err)
		}
	}

	if c.Capture.MaxBufferSeconds < 0 {
		return fmt.Errorf("capture.max_buffer_seconds must be >= 0, got %d", c.Capture.MaxBufferSeconds)
	}

	for _, f := range c.Output.Formats {
		if !transcript.Supported(f) {
			return fmt.Errorf("output.formats: unknown format %q", f)
		}
	}

	return nil
}

func (c *Config) validateBackend(name string) error {
	switch name {
	case BackendWhisper:
		if c.Engine.Whisper.ModelPath == "" {
			return fmt.Errorf("whisper requires a model path (engine.whisper.model_path, DICTAPHONE_MODEL or the first argument)")
		}
	case BackendRemote:
		if c.Engine.Remote.BaseURL == "" {
			return fmt.Errorf("remote_whisper_api requires engine.remote.base_url")
		}
	case BackendVosk:
		if c.Engine.Vosk.URL == "" {
			return fmt.Errorf("vosk requires engine.vosk.url")
		}
	default:
		return fmt.Errorf("unknown backend %q", name)
	}
	return nil
}
