// Package config loads the server configuration from an optional YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/erazemk/zaloga/internal/auth"
	"github.com/erazemk/zaloga/internal/blob"
	"github.com/erazemk/zaloga/internal/inventory"
)

// Config is the full server configuration.
type Config struct {
	Addr          string      `yaml:"addr"`
	DB            string      `yaml:"db"`
	Log           Log         `yaml:"log"`
	Blob          blob.Config `yaml:"blob"`
	Attachments   Attachments `yaml:"attachments"`
	ActivityLimit int         `yaml:"activity_limit"`
	Auth          Auth        `yaml:"auth"`
}

// Log configures the optional rotated log file.
type Log struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Attachments configures uploads.
type Attachments struct {
	DownscaleImages bool  `yaml:"downscale_images"`
	MaxUploadMB     int64 `yaml:"max_upload_mb"`
}

// Auth configures session tokens.
type Auth struct {
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Addr: ":8080",
		DB:   "zaloga.sqlite3",
		Log: Log{
			MaxSizeMB:  20,
			MaxBackups: 2,
			MaxAgeDays: 10,
		},
		Blob: blob.Config{
			Driver: blob.DriverFilesystem,
			FSRoot: "blobs",
		},
		Attachments: Attachments{
			DownscaleImages: true,
			MaxUploadMB:     20,
		},
		ActivityLimit: inventory.DefaultActivityLimit,
		Auth:          Auth{TokenTTL: auth.DefaultTokenTTL},
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults. Unknown keys are an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.DB == "" {
		return errors.New("db path must not be empty")
	}
	switch c.Blob.Driver {
	case blob.DriverFilesystem, "":
		if c.Blob.FSRoot == "" {
			return errors.New("blob.fs_root must not be empty")
		}
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return errors.New("blob.s3.bucket must not be empty")
		}
	case blob.DriverMemory:
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if c.ActivityLimit <= 0 {
		return fmt.Errorf("activity_limit must be positive, got %d", c.ActivityLimit)
	}
	if c.Attachments.MaxUploadMB <= 0 {
		return fmt.Errorf("attachments.max_upload_mb must be positive, got %d", c.Attachments.MaxUploadMB)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive, got %s", c.Auth.TokenTTL)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return errors.New("log limits must not be negative")
	}
	return nil
}

// MaxUploadBytes is the multipart body limit for attachment uploads.
func (c *Config) MaxUploadBytes() int64 {
	return c.Attachments.MaxUploadMB << 20
}
