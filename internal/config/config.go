package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	UploadsDir    string `toml:"uploads_dir"`
	LogDir        string `toml:"log_dir"`
	APIBind       string `toml:"api_bind"`
	AllowedOrigin string `toml:"allowed_origin"`
}

// Transcoder configures the external ffmpeg/ffprobe capability.
type Transcoder struct {
	FFmpegBinary           string `toml:"ffmpeg_binary"`
	FFprobeBinary          string `toml:"ffprobe_binary"`
	VideoCodec             string `toml:"video_codec"`
	AudioCodec             string `toml:"audio_codec"`
	Preset                 string `toml:"preset"`
	SegmentSeconds         int    `toml:"segment_seconds"`
	ThumbnailOffset        string `toml:"thumbnail_offset"`
	ThumbnailMaxWidth      int    `toml:"thumbnail_max_width"`
	CommandTimeoutSeconds  int    `toml:"command_timeout_seconds"`
	PreserveMetadataOnCopy bool   `toml:"preserve_metadata_on_copy"`
}

// Ladder selects and tunes the rendition ladder policy.
type Ladder struct {
	Policy           string `toml:"policy"`
	Tiers            []int  `toml:"tiers"`
	Floor            int    `toml:"floor"`
	LimitRotated     bool   `toml:"limit_rotated"`
	RotatedTierLimit int    `toml:"rotated_tier_limit"`
}

// Preprocess configures the data-track stripping pass.
type Preprocess struct {
	Enabled          bool     `toml:"enabled"`
	ProblematicTags  []string `toml:"problematic_tags"`
	RetainDebugCopy  bool     `toml:"retain_debug_copy"`
	TempDirName      string   `toml:"temp_dir_name"`
	StaleTempMaxAgeH int      `toml:"stale_temp_max_age_hours"`
}

// Workflow contains configuration for background job execution.
type Workflow struct {
	MaxConcurrentJobs int `toml:"max_concurrent_jobs"`
	PollInterval      int `toml:"poll_interval"`
	MaxUploadMiB      int `toml:"max_upload_mib"`
	MinFreeMiB        int `toml:"min_free_mib"`
}

// Store selects the persisted job record backend.
type Store struct {
	Backend    string `toml:"backend"`
	SQLitePath string `toml:"sqlite_path"`
}

// Events configures optional publication of job transitions.
type Events struct {
	Backend       string   `toml:"backend"`
	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
	RedisChannel  string   `toml:"redis_channel"`
	RedisTTLHours int      `toml:"redis_ttl_hours"`
	KafkaBrokers  []string `toml:"kafka_brokers"`
	KafkaTopic    string   `toml:"kafka_topic"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics toggles the Prometheus endpoint.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Debug enables diagnostic artifacts kept alongside a package.
type Debug struct {
	ConvertMP4 bool `toml:"convert_mp4"`
}

// Config encapsulates all configuration values for streampack.
//
// Configuration sections by subsystem:
//   - Paths: uploads root, daemon log directory, and API bind address
//   - Transcoder: ffmpeg/ffprobe binaries and packaging knobs
//   - Ladder: rendition ladder policy
//   - Preprocess: data-track stripping
//   - Workflow: worker limits and polling
//   - Store: job record backend (file or sqlite)
//   - Events: transition publication (none, redis, kafka)
//   - Logging: log format and level
//   - Metrics: Prometheus endpoint
//   - Debug: diagnostic artifacts
type Config struct {
	Paths      Paths      `toml:"paths"`
	Transcoder Transcoder `toml:"transcoder"`
	Ladder     Ladder     `toml:"ladder"`
	Preprocess Preprocess `toml:"preprocess"`
	Workflow   Workflow   `toml:"workflow"`
	Store      Store      `toml:"store"`
	Events     Events     `toml:"events"`
	Logging    Logging    `toml:"logging"`
	Metrics    Metrics    `toml:"metrics"`
	Debug      Debug      `toml:"debug"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/streampack/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("streampack.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.UploadsDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Store.Backend == StoreSQLite {
		if err := os.MkdirAll(filepath.Dir(c.Store.SQLitePath), 0o755); err != nil {
			return fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	return nil
}

// FFprobeBinary returns the ffprobe executable used for media inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Transcoder.FFprobeBinary); bin != "" {
		return bin
	}
	return "ffprobe"
}

// FFmpegBinary returns the ffmpeg executable used for transcoding and packaging.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Transcoder.FFmpegBinary); bin != "" {
		return bin
	}
	return "ffmpeg"
}

// CommandTimeout bounds a single external command. Zero means no limit.
func (c *Config) CommandTimeout() time.Duration {
	if c.Transcoder.CommandTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Transcoder.CommandTimeoutSeconds) * time.Second
}

// PollInterval returns the worker poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.PollInterval) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
