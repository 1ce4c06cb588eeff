package routekit

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestGetConfig(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    Config
	}{
		{
			name:    "default values",
			envVars: map[string]string{},
			want: Config{
				UseCases:        "inputs.json",
				ArchiveDir:      "moved",
				LogLevel:        "info",
				LogFormat:       "text",
				MaxArchiveFiles: 10000,
				MaxArchiveBytes: 10737418240,
				WatchDebounce:   "2s",
				VerifyCopies:    true,
			},
		},
		{
			name: "sweep configuration",
			envVars: map[string]string{
				"BEAVER_ROUTEKIT_SOURCE_DIR":     "/mnt/inputs",
				"BEAVER_ROUTEKIT_USE_CASES":      "/etc/routekit/use-cases.yaml",
				"BEAVER_ROUTEKIT_ARCHIVE_DIR":    "processed",
				"BEAVER_ROUTEKIT_VERIFY_COPIES":  "false",
				"BEAVER_ROUTEKIT_WATCH_DEBOUNCE": "500ms",
			},
			want: Config{
				SourceDir:       "/mnt/inputs",
				UseCases:        "/etc/routekit/use-cases.yaml",
				ArchiveDir:      "processed",
				LogLevel:        "info",
				LogFormat:       "text",
				MaxArchiveFiles: 10000,
				MaxArchiveBytes: 10737418240,
				WatchDebounce:   "500ms",
				VerifyCopies:    false,
			},
		},
		{
			name: "outputs and limits",
			envVars: map[string]string{
				"BEAVER_ROUTEKIT_LOG_LEVEL":         "success",
				"BEAVER_ROUTEKIT_LOG_FORMAT":        "json",
				"BEAVER_ROUTEKIT_LOG_FILE":          "/var/log/routekit.log",
				"BEAVER_ROUTEKIT_REPORT_FILE":       "/var/lib/routekit/run.xlsx",
				"BEAVER_ROUTEKIT_METRICS_FILE":      "/var/lib/node_exporter/routekit.prom",
				"BEAVER_ROUTEKIT_MAX_ARCHIVE_FILES": "500",
				"BEAVER_ROUTEKIT_MAX_ARCHIVE_BYTES": "1048576",
			},
			want: Config{
				UseCases:        "inputs.json",
				ArchiveDir:      "moved",
				LogLevel:        "success",
				LogFormat:       "json",
				LogFile:         "/var/log/routekit.log",
				ReportFile:      "/var/lib/routekit/run.xlsx",
				MetricsFile:     "/var/lib/node_exporter/routekit.prom",
				MaxArchiveFiles: 500,
				MaxArchiveBytes: 1048576,
				WatchDebounce:   "2s",
				VerifyCopies:    true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := GetConfig()
			if err != nil {
				t.Fatalf("GetConfig() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, *cfg); diff != "" {
				t.Errorf("GetConfig() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGetConfigWithPrefix(t *testing.T) {
	t.Setenv("ACME_ROUTEKIT_SOURCE_DIR", "/srv/drop")
	t.Setenv("BEAVER_ROUTEKIT_SOURCE_DIR", "/mnt/inputs")

	cfg, err := GetConfigWithPrefix("ACME_")
	if err != nil {
		t.Fatalf("GetConfigWithPrefix() error = %v", err)
	}
	if cfg.SourceDir != "/srv/drop" {
		t.Errorf("SourceDir = %q, want /srv/drop", cfg.SourceDir)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			SourceDir:       "/mnt/inputs",
			UseCases:        "inputs.json",
			ArchiveDir:      "moved",
			LogLevel:        "info",
			LogFormat:       "text",
			MaxArchiveFiles: 10000,
			MaxArchiveBytes: 1 << 30,
			WatchDebounce:   "2s",
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing source", func(c *Config) { c.SourceDir = "" }, "source directory is required"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, `unknown log level "loud"`},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "log format must be text or json"},
		{"zero files", func(c *Config) { c.MaxArchiveFiles = 0 }, "max archive files must be positive"},
		{"negative bytes", func(c *Config) { c.MaxArchiveBytes = -1 }, "max archive bytes must be positive"},
		{"bad debounce", func(c *Config) { c.WatchDebounce = "soon" }, "watch debounce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigDebounce(t *testing.T) {
	cfg := &Config{WatchDebounce: "1500ms"}
	d, err := cfg.Debounce()
	if err != nil {
		t.Fatal(err)
	}
	if d != 1500*time.Millisecond {
		t.Errorf("Debounce() = %v, want 1.5s", d)
	}
}
