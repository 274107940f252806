package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Tokens.AccessSecret = "access-secret"
	cfg.Tokens.RefreshSecret = "refresh-secret"
	cfg.Storage.Bucket = "vidtube"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Tokens.AccessExpiry != 15*time.Minute {
		t.Errorf("Tokens.AccessExpiry = %v, want 15m", cfg.Tokens.AccessExpiry)
	}
	if cfg.Storage.Driver != StorageDriverS3 {
		t.Errorf("Storage.Driver = %q, want s3", cfg.Storage.Driver)
	}
	if !cfg.Server.CookieSecure {
		t.Error("cookies should be secure by default")
	}
	if cfg.Server.TrustProxy {
		t.Error("forwarded headers should not be trusted by default")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing access secret", mutate: func(c *Config) { c.Tokens.AccessSecret = "" }, wantErr: "access token secret is required"},
		{name: "shared secrets", mutate: func(c *Config) { c.Tokens.RefreshSecret = c.Tokens.AccessSecret }, wantErr: "must differ"},
		{name: "zero expiry", mutate: func(c *Config) { c.Tokens.RefreshExpiry = 0 }, wantErr: "refresh token expiry"},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "ftp" }, wantErr: "unknown storage driver"},
		{name: "missing bucket", mutate: func(c *Config) { c.Storage.Bucket = "" }, wantErr: "storage bucket is required"},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "out of range"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestEnvTransform(t *testing.T) {
	cases := map[string]string{
		"VIDTUBE_PORT":                 "server.port",
		"VIDTUBE_ACCESS_TOKEN_SECRET":  "tokens.access_secret",
		"VIDTUBE_REFRESH_TOKEN_EXPIRY": "tokens.refresh_expiry",
		"VIDTUBE_STORAGE_DRIVER":       "storage.driver",
		"VIDTUBE_WRITE_TIMEOUT":        "server.write_timeout",
		"VIDTUBE_TRUST_PROXY":          "server.trust_proxy",
		"VIDTUBE_SOMETHING_ELSE":       "",
	}
	for in, want := range cases {
		if got := envTransform(in); got != want {
			t.Errorf("envTransform(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadLayersFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
server:
  port: 9000
storage:
  bucket: from-file
tokens:
  access_secret: file-access
  refresh_secret: file-refresh
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(PathEnvVar, path)
	t.Setenv("VIDTUBE_ACCESS_TOKEN_SECRET", "env-access")
	t.Setenv("VIDTUBE_ACCESS_TOKEN_EXPIRY", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000 from file", cfg.Server.Port)
	}
	if cfg.Storage.Bucket != "from-file" {
		t.Errorf("Storage.Bucket = %q, want from-file", cfg.Storage.Bucket)
	}
	if cfg.Tokens.AccessSecret != "env-access" {
		t.Errorf("Tokens.AccessSecret = %q, want env override", cfg.Tokens.AccessSecret)
	}
	if cfg.Tokens.RefreshSecret != "file-refresh" {
		t.Errorf("Tokens.RefreshSecret = %q, want file value", cfg.Tokens.RefreshSecret)
	}
	if cfg.Tokens.AccessExpiry != 5*time.Minute {
		t.Errorf("Tokens.AccessExpiry = %v, want 5m", cfg.Tokens.AccessExpiry)
	}
	if cfg.Tokens.RefreshExpiry != 10*24*time.Hour {
		t.Errorf("Tokens.RefreshExpiry = %v, want default", cfg.Tokens.RefreshExpiry)
	}
}

func TestLoadRejectsMissingSecrets(t *testing.T) {
	t.Setenv(PathEnvVar, filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("VIDTUBE_STORAGE_BUCKET", "bucket")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation failure without token secrets")
	}
}
