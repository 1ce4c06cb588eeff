package routekit

import (
	"errors"
	"fmt"
	"time"

	"github.com/gobeaver/beaver-kit/config"
)

// Config holds the runtime settings of the routekit tool. Use-case
// definitions live in their own file, named by UseCases.
type Config struct {
	// Directory swept for incoming files
	SourceDir string `env:"ROUTEKIT_SOURCE_DIR"`

	// Use-case definitions (.json, .yaml, .yml or .toml)
	UseCases string `env:"ROUTEKIT_USE_CASES,default:inputs.json"`

	// Folder under SourceDir that processed archives move into
	ArchiveDir string `env:"ROUTEKIT_ARCHIVE_DIR,default:moved"`

	// Logging
	LogLevel  string `env:"ROUTEKIT_LOG_LEVEL,default:info"`
	LogFormat string `env:"ROUTEKIT_LOG_FORMAT,default:text"` // text or json
	LogFile   string `env:"ROUTEKIT_LOG_FILE"`                // appended to, alongside stderr

	// Optional run outputs
	ReportFile  string `env:"ROUTEKIT_REPORT_FILE"`  // xlsx run report
	MetricsFile string `env:"ROUTEKIT_METRICS_FILE"` // Prometheus textfile

	// Archive safety limits
	MaxArchiveFiles int   `env:"ROUTEKIT_MAX_ARCHIVE_FILES,default:10000"`
	MaxArchiveBytes int64 `env:"ROUTEKIT_MAX_ARCHIVE_BYTES,default:10737418240"` // 10GB

	// Quiet period after a change before watch mode sweeps
	WatchDebounce string `env:"ROUTEKIT_WATCH_DEBOUNCE,default:2s"`

	// Checksum secondary copies against their source
	VerifyCopies bool `env:"ROUTEKIT_VERIFY_COPIES,default:true"`
}

// GetConfig returns config loaded from environment
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetConfigWithPrefix loads config from variables named prefix+ROUTEKIT_...
func GetConfigWithPrefix(prefix string) (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: prefix}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Debounce parses WatchDebounce.
func (c *Config) Debounce() (time.Duration, error) {
	d, err := time.ParseDuration(c.WatchDebounce)
	if err != nil {
		return 0, fmt.Errorf("watch debounce: %w", err)
	}
	return d, nil
}

// Validate checks the settings a sweep cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.SourceDir == "" {
		errs = append(errs, errors.New("source directory is required"))
	}
	if c.UseCases == "" {
		errs = append(errs, errors.New("use case file is required"))
	}
	if c.ArchiveDir == "" {
		errs = append(errs, errors.New("archive directory is required"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.LogFormat))
	}
	if c.MaxArchiveFiles <= 0 {
		errs = append(errs, fmt.Errorf("max archive files must be positive, got %d", c.MaxArchiveFiles))
	}
	if c.MaxArchiveBytes <= 0 {
		errs = append(errs, fmt.Errorf("max archive bytes must be positive, got %d", c.MaxArchiveBytes))
	}
	if d, err := c.Debounce(); err != nil {
		errs = append(errs, err)
	} else if d < 0 {
		errs = append(errs, fmt.Errorf("watch debounce must not be negative, got %s", d))
	}
	return errors.Join(errs...)
}
