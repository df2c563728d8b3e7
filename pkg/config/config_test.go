package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestParse(t *testing.T) {
	doc := `
bundle:
  source: s3
  s3:
    bucket: intel
    key: attack/enterprise-attack.json.sz
    region: eu-west-1
    endpoint: http://localhost:9000
  load_timeout: 45s
  reload_interval: 0s
server:
  transport: http
  addr: 127.0.0.1:9090
  cors_origins: ["https://console.example"]
  rate_limit:
    requests_per_second: 5
    burst: 10
queries:
  block_while_loading: false
  default_depth: 3
logging:
  level: debug
`
	cfg, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Bundle.Source != SourceS3 || cfg.Bundle.S3.Bucket != "intel" || cfg.Bundle.S3.Region != "eu-west-1" {
		t.Errorf("bundle not decoded: %+v", cfg.Bundle)
	}
	if cfg.Bundle.LoadTimeout != 45*time.Second {
		t.Errorf("load_timeout = %v", cfg.Bundle.LoadTimeout)
	}
	if cfg.Bundle.ReloadInterval != 0 {
		t.Errorf("reload_interval = %v, want 0", cfg.Bundle.ReloadInterval)
	}
	if cfg.Server.Transport != TransportHTTP || cfg.Server.Addr != "127.0.0.1:9090" {
		t.Errorf("server not decoded: %+v", cfg.Server)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.RateLimit.RequestsPerSecond != 5 || cfg.Server.RateLimit.Burst != 10 {
		t.Errorf("http options not decoded: %+v", cfg.Server)
	}
	// Unset keys keep their defaults
	if cfg.Server.MaxBodyBytes != 1<<20 {
		t.Errorf("max_body_bytes = %d, want default", cfg.Server.MaxBodyBytes)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("shutdown_timeout = %v, want default", cfg.Server.ShutdownTimeout)
	}
	if cfg.Queries.BlockWhileLoading || cfg.Queries.DefaultDepth != 3 {
		t.Errorf("queries not decoded: %+v", cfg.Queries)
	}
	if cfg.Tracing.ServiceName != "attackgraph" {
		t.Errorf("tracing default lost: %+v", cfg.Tracing)
	}
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Bundle.Path != Default().Bundle.Path {
		t.Errorf("expected defaults, got %+v", cfg.Bundle)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	if _, err := Parse(strings.NewReader("bundle:\n  pathh: x\n")); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Bundle.Source = SourceS3
	cfg.Bundle.S3.AccessKeyID = "AKIA"
	cfg.Server.Transport = "grpc"
	cfg.Queries.DefaultDepth = 6
	cfg.Logging.Level = "loud"
	cfg.Server.MaxBodyBytes = -1
	cfg.Server.RateLimit = RateLimitConfig{RequestsPerSecond: 10, Burst: 0}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{
		"bundle.s3.bucket",
		"bundle.s3.key",
		"bundle.s3.credentials",
		"server.transport",
		"queries.default_depth",
		"logging.level",
		"server.max_body_bytes",
		"server.rate_limit",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %s in %v", want, err)
		}
	}
}

func TestValidateTracing(t *testing.T) {
	cfg := Default()
	cfg.Tracing.Enabled = true
	cfg.Tracing.Endpoint = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "tracing.endpoint") {
		t.Errorf("expected tracing.endpoint error, got %v", err)
	}
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attackgraph.yaml")
	if err := os.WriteFile(path, []byte("bundle:\n  path: from-file.json\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(BundleEnv, "/data/from-env.json")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Bundle.Path != "/data/from-env.json" {
		t.Errorf("env override not applied: %q", cfg.Bundle.Path)
	}
}

func TestApplyEnvS3URL(t *testing.T) {
	t.Setenv(BundleEnv, "s3://intel/attack/enterprise.json")
	t.Setenv(TransportEnv, "http")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.Bundle.Source != SourceS3 || cfg.Bundle.S3.Bucket != "intel" || cfg.Bundle.S3.Key != "attack/enterprise.json" {
		t.Errorf("s3 url not applied: %+v", cfg.Bundle)
	}
	if cfg.Server.Transport != TransportHTTP {
		t.Errorf("transport = %q", cfg.Server.Transport)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
