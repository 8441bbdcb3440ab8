// Package config loads and validates breeze's TOML configuration file.
package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// EngineConfig mirrors the [engine] table.
type EngineConfig struct {
	BaseURL         string `toml:"base_url"`
	UploadKey       string `toml:"upload_key"`
	DeletionSecret  string `toml:"deletion_secret"`
	MaxUploadLen    int64  `toml:"max_upload_len"`
	MaxTempLifetime int64  `toml:"max_temp_lifetime"`
	MaxStripLen     int64  `toml:"max_strip_len"`
	Motd            string `toml:"motd"`

	Disk  DiskConfig  `toml:"disk"`
	Cache CacheConfig `toml:"cache"`
}

// DiskConfig mirrors [engine.disk].
type DiskConfig struct {
	SavePath string `toml:"save_path"`
}

// CacheConfig mirrors [engine.cache].
type CacheConfig struct {
	MaxLength      int64 `toml:"max_length"`
	UploadLifetime int64 `toml:"upload_lifetime"`
	ScanFreq       int64 `toml:"scan_freq"`
	MemCapacity    int64 `toml:"mem_capacity"`
}

// HTTPConfig mirrors the [http] table.
type HTTPConfig struct {
	ListenOn string `toml:"listen_on"`
}

// LoggerConfig mirrors the [logger] table.
type LoggerConfig struct {
	Level string `toml:"level"`
}

// Config is the fully parsed and validated configuration file, plus the
// loggers derived from it.
type Config struct {
	Engine EngineConfig `toml:"engine"`
	HTTP   HTTPConfig   `toml:"http"`
	Logger LoggerConfig `toml:"logger"`

	AccessLogger *log.Logger
	ErrorLogger  *log.Logger
}

// MaxUploadLenPtr adapts the zero-means-unset TOML field into engine's
// nil-means-unlimited convention.
func (c *Config) MaxUploadLenPtr() *int64 {
	if c.Engine.MaxUploadLen <= 0 {
		return nil
	}
	v := c.Engine.MaxUploadLen
	return &v
}

const logFlags = log.Ldate | log.Ltime | log.LUTC

func defaults() Config {
	return Config{
		Logger: LoggerConfig{Level: "all"},
		Engine: EngineConfig{
			Cache: CacheConfig{
				ScanFreq: 30,
			},
		},
	}
}

// Load reads and validates the TOML file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes and validates TOML-encoded configuration data.
func Parse(data []byte) (*Config, error) {
	c := defaults()

	if _, err := toml.Decode(string(data), &c); err != nil {
		return nil, fmt.Errorf("parsing TOML config: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	c.setLoggers()

	return &c, nil
}

func (c *Config) validate() error {
	if c.Engine.BaseURL == "" {
		return fmt.Errorf("engine.base_url is required")
	}
	if c.Engine.Disk.SavePath == "" {
		return fmt.Errorf("engine.disk.save_path is required")
	}
	fi, err := os.Stat(c.Engine.Disk.SavePath)
	if err != nil {
		return fmt.Errorf("engine.disk.save_path %q: %w", c.Engine.Disk.SavePath, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("engine.disk.save_path %q is not a directory", c.Engine.Disk.SavePath)
	}
	if c.Engine.Cache.MemCapacity <= 0 {
		return fmt.Errorf("engine.cache.mem_capacity must be positive")
	}
	if c.Engine.Cache.MaxLength <= 0 {
		return fmt.Errorf("engine.cache.max_length must be positive")
	}
	if c.Engine.Cache.ScanFreq <= 0 {
		return fmt.Errorf("engine.cache.scan_freq must be positive")
	}
	if c.HTTP.ListenOn == "" {
		return fmt.Errorf("http.listen_on is required")
	}
	return nil
}

func (c *Config) setLoggers() {
	c.AccessLogger = log.New(os.Stdout, "", logFlags)
	c.ErrorLogger = log.New(os.Stderr, "", logFlags)

	if c.Logger.Level == "none" {
		c.AccessLogger.SetOutput(io.Discard)
	}
}

// CacheScanFreq returns the scan interval as a time.Duration.
func (c *Config) CacheScanFreq() time.Duration {
	return time.Duration(c.Engine.Cache.ScanFreq) * time.Second
}

// CacheUploadLifetime returns the default upload lifetime as a
// time.Duration.
func (c *Config) CacheUploadLifetime() time.Duration {
	return time.Duration(c.Engine.Cache.UploadLifetime) * time.Second
}

// MaxTempLifetime returns the temporary-upload lifetime ceiling as a
// time.Duration.
func (c *Config) MaxTempLifetime() time.Duration {
	return time.Duration(c.Engine.MaxTempLifetime) * time.Second
}
