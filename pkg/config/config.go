// Package config loads the YAML configuration for the attackgraph binaries.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-attackgraph/pkg/validation"
)

// Environment overrides
const (
	BundleEnv    = "ATTACKGRAPH_BUNDLE"
	TransportEnv = "ATTACKGRAPH_TRANSPORT"
)

// Bundle sources
const (
	SourceFile = "file"
	SourceS3   = "s3"
)

// Transports
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config is the root configuration document
type Config struct {
	Bundle  BundleConfig  `yaml:"bundle"`
	Server  ServerConfig  `yaml:"server"`
	Queries QueryConfig   `yaml:"queries"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

// BundleConfig says where the knowledge base comes from and how often it is refreshed
type BundleConfig struct {
	Source         string        `yaml:"source"`
	Path           string        `yaml:"path"`
	S3             S3Config      `yaml:"s3"`
	LoadTimeout    time.Duration `yaml:"load_timeout"`
	ReloadInterval time.Duration `yaml:"reload_interval"` // 0 disables periodic reload
}

// S3Config locates a bundle in S3 or an S3-compatible store
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Key             string `yaml:"key"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// ServerConfig controls the tool transport
type ServerConfig struct {
	Transport       string          `yaml:"transport"`
	Addr            string          `yaml:"addr"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	CORSOrigins     []string        `yaml:"cors_origins"`
	MaxBodyBytes    int64           `yaml:"max_body_bytes"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds requests per client IP in HTTP mode. A zero rate
// disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// QueryConfig holds query-time defaults
type QueryConfig struct {
	BlockWhileLoading bool `yaml:"block_while_loading"`
	DefaultDepth      int  `yaml:"default_depth"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Bundle: BundleConfig{
			Source:         SourceFile,
			Path:           "enterprise-attack.json",
			S3:             S3Config{Region: "us-east-1"},
			LoadTimeout:    2 * time.Minute,
			ReloadInterval: 24 * time.Hour,
		},
		Server: ServerConfig{
			Transport:       TransportStdio,
			Addr:            ":8080",
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
			RateLimit:       RateLimitConfig{RequestsPerSecond: 50, Burst: 100},
		},
		Queries: QueryConfig{
			BlockWhileLoading: true,
			DefaultDepth:      validation.DefaultDepth,
		},
		Logging: LoggingConfig{Level: "info"},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4317",
			Insecure:    true,
			ServiceName: "attackgraph",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path yields the
// defaults. Environment overrides are applied before validation.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := cfg.decode(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults and validates it
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(r); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv applies environment overrides
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(BundleEnv)); v != "" {
		if strings.HasPrefix(v, "s3://") {
			bucket, key, _ := strings.Cut(strings.TrimPrefix(v, "s3://"), "/")
			c.Bundle.Source = SourceS3
			c.Bundle.S3.Bucket = bucket
			c.Bundle.S3.Key = key
		} else {
			c.Bundle.Source = SourceFile
			c.Bundle.Path = v
		}
	}
	if v := strings.TrimSpace(os.Getenv(TransportEnv)); v != "" {
		c.Server.Transport = v
	}
}

// Validate checks every section and reports all problems at once
func (c *Config) Validate() error {
	cv := validation.NewConfigValidator("config")

	cv.OneOf("bundle.source", c.Bundle.Source, []string{SourceFile, SourceS3}).
		When(c.Bundle.Source == SourceFile, func(cv *validation.ConfigValidator) {
			cv.Required("bundle.path", c.Bundle.Path)
		}).
		When(c.Bundle.Source == SourceS3, func(cv *validation.ConfigValidator) {
			cv.Required("bundle.s3.bucket", c.Bundle.S3.Bucket).
				Required("bundle.s3.key", c.Bundle.S3.Key).
				Required("bundle.s3.region", c.Bundle.S3.Region).
				Custom("bundle.s3.credentials", func() error {
					if (c.Bundle.S3.AccessKeyID == "") != (c.Bundle.S3.SecretAccessKey == "") {
						return errors.New("access_key_id and secret_access_key must be set together")
					}
					return nil
				})
		}).
		MinDuration("bundle.load_timeout", c.Bundle.LoadTimeout, time.Second).
		NonNegativeDuration("bundle.reload_interval", c.Bundle.ReloadInterval)

	cv.OneOf("server.transport", c.Server.Transport, []string{TransportStdio, TransportHTTP}).
		When(c.Server.Transport == TransportHTTP, func(cv *validation.ConfigValidator) {
			cv.Required("server.addr", c.Server.Addr)
		}).
		MinDuration("server.shutdown_timeout", c.Server.ShutdownTimeout, time.Second).
		When(c.Server.RateLimit.RequestsPerSecond > 0, func(cv *validation.ConfigValidator) {
			cv.Custom("server.rate_limit.burst", func() error {
				if c.Server.RateLimit.Burst < 1 {
					return errors.New("burst must be at least 1 when limiting is enabled")
				}
				return nil
			})
		})
	validation.NonNegative(cv, "server.max_body_bytes", c.Server.MaxBodyBytes)
	validation.NonNegative(cv, "server.rate_limit.requests_per_second", c.Server.RateLimit.RequestsPerSecond)

	cv.RangeInt("queries.default_depth", c.Queries.DefaultDepth, validation.MinDepth, validation.MaxDepth)

	cv.OneOf("logging.level", strings.ToLower(c.Logging.Level), []string{"debug", "info", "warn", "warning", "error"})

	cv.When(c.Tracing.Enabled, func(cv *validation.ConfigValidator) {
		cv.Required("tracing.endpoint", c.Tracing.Endpoint).
			Required("tracing.service_name", c.Tracing.ServiceName)
	})

	return cv.Validate()
}
