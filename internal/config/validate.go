package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateServices(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.Endpoint == "" {
		return errors.New("storage.endpoint must be set")
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket must be set")
	}
	if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/vidpress/config.toml"
		}
		return fmt.Errorf("storage credentials are required. Set VIDPRESS_STORAGE_ACCESS_KEY/VIDPRESS_STORAGE_SECRET_KEY env vars or edit %s (create with 'vidpress config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateUpload() error {
	if err := ensurePositiveMap(map[string]int64{
		"upload.chunk_threshold_mib": c.Upload.ChunkThresholdMiB,
		"upload.part_size_mib":       c.Upload.PartSizeMiB,
		"upload.max_file_gib":        c.Upload.MaxFileGiB,
		"upload.parallelism":         int64(c.Upload.Parallelism),
	}); err != nil {
		return err
	}
	// MinIO rejects parts below 5 MiB except the final one.
	if c.Upload.PartSizeMiB < 5 {
		return errors.New("upload.part_size_mib must be at least 5")
	}
	if c.PartSizeBytes() > c.ChunkThresholdBytes() {
		return errors.New("upload.part_size_mib must not exceed upload.chunk_threshold_mib")
	}
	return nil
}

func (c *Config) validateServices() error {
	if err := ensurePositiveMap(map[string]int64{
		"transcoder.request_timeout":           int64(c.Transcoder.RequestTimeout),
		"transcription.poll_interval_seconds":  int64(c.Transcription.PollIntervalSeconds),
		"transcription.max_attempts":           int64(c.Transcription.MaxAttempts),
		"playback.probe_timeout_seconds":       int64(c.Playback.ProbeTimeoutSeconds),
		"notifications.request_timeout":        int64(c.Notifications.RequestTimeout),
	}); err != nil {
		return err
	}
	if c.Thumbnail.AutoAcceptAfterSeconds < 0 {
		return errors.New("thumbnail.auto_accept_after_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int64) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
