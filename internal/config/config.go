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

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Storage contains configuration for the object storage backend.
type Storage struct {
	Endpoint      string `toml:"endpoint"`
	AccessKey     string `toml:"access_key"`
	SecretKey     string `toml:"secret_key"`
	Bucket        string `toml:"bucket"`
	Region        string `toml:"region"`
	UseSSL        bool   `toml:"use_ssl"`
	PublicBaseURL string `toml:"public_base_url"`
}

// Upload contains configuration for the chunked transfer engine.
type Upload struct {
	ChunkThresholdMiB int64 `toml:"chunk_threshold_mib"`
	PartSizeMiB       int64 `toml:"part_size_mib"`
	Parallelism       int   `toml:"parallelism"`
	MaxFileGiB        int64 `toml:"max_file_gib"`
}

// Transcoder contains configuration for the managed video-processing service.
type Transcoder struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Transcription contains configuration for the transcription service.
type Transcription struct {
	BaseURL             string `toml:"base_url"`
	APIKey              string `toml:"api_key"`
	Language            string `toml:"language"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	MaxAttempts         int    `toml:"max_attempts"`
	Diarization         bool   `toml:"diarization"`
	Captions            bool   `toml:"captions"`
}

// Playback contains configuration for the playback source resolver.
type Playback struct {
	CDNBaseURL          string `toml:"cdn_base_url"`
	ProbeTimeoutSeconds int    `toml:"probe_timeout_seconds"`
}

// Thumbnail contains configuration for the thumbnail decision gate.
type Thumbnail struct {
	// AutoAcceptAfterSeconds resolves an unanswered gate to the automatic
	// strategy after the given delay. Zero keeps the gate waiting without
	// bound, which is the interactive default.
	AutoAcceptAfterSeconds int `toml:"auto_accept_after_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for vidpress.
//
// Configuration sections by subsystem:
//   - Paths: catalog database and log directories
//   - Storage: object storage endpoint, credentials, and bucket
//   - Upload: chunking threshold, part size, and worker parallelism
//   - Transcoder: managed video-processing service connection
//   - Transcription: transcription service connection and poll budget
//   - Playback: CDN base URL and probe timeout for the source cascade
//   - Thumbnail: optional auto-accept deadline for the decision gate
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Storage       Storage       `toml:"storage"`
	Upload        Upload        `toml:"upload"`
	Transcoder    Transcoder    `toml:"transcoder"`
	Transcription Transcription `toml:"transcription"`
	Playback      Playback      `toml:"playback"`
	Thumbnail     Thumbnail     `toml:"thumbnail"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vidpress/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
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

	projectPath, err := filepath.Abs("vidpress.toml")
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

// EnsureDirectories creates required directories for pipeline operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ChunkThresholdBytes returns the size at which uploads switch to the
// multipart protocol.
func (c *Config) ChunkThresholdBytes() int64 {
	return c.Upload.ChunkThresholdMiB * 1024 * 1024
}

// PartSizeBytes returns the multipart part size communicated to the engine.
func (c *Config) PartSizeBytes() int64 {
	return c.Upload.PartSizeMiB * 1024 * 1024
}

// MaxFileBytes returns the direct-upload size cap.
func (c *Config) MaxFileBytes() int64 {
	return c.Upload.MaxFileGiB * 1024 * 1024 * 1024
}

// PollInterval returns the transcription status poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Transcription.PollIntervalSeconds) * time.Second
}

// ProbeTimeout returns the per-source playback probe timeout.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Playback.ProbeTimeoutSeconds) * time.Second
}

// AutoAcceptAfter returns the thumbnail gate auto-accept delay, zero meaning
// an unbounded wait.
func (c *Config) AutoAcceptAfter() time.Duration {
	return time.Duration(c.Thumbnail.AutoAcceptAfterSeconds) * time.Second
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// WriteSample writes the sample configuration to path, refusing to overwrite
// an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
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
