package logging

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

// Config configures a StructuredLogger.
type Config struct {
	// Level is the threshold. Debug records need LevelDebug or higher.
	Level Level `koanf:"level"`

	// LogFile enables the rotating file sink when non-empty.
	LogFile string `koanf:"file"`

	// DryRun prefixes every message with "[DRY-RUN] ".
	DryRun bool `koanf:"dry_run"`

	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int `koanf:"max_size_mb"`

	// MaxBackups is the number of rotated files kept.
	MaxBackups int `koanf:"max_backups"`

	// Format selects the file encoder: "console" or "json".
	Format string `koanf:"format"`

	// NoColor disables console styling.
	NoColor bool `koanf:"no_color"`

	// Name is attached to file entries as the logger name.
	Name string `koanf:"name"`
}

// DefaultConfig returns the configuration used by Initialize(nil).
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		MaxSizeMB:  1,
		MaxBackups: 1,
		Format:     "console",
		Name:       "smrkit",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Level < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, c.Level)
	}
	switch c.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Format)
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 {
		return errors.New("logging: rotation limits must not be negative")
	}
	return nil
}

// ConfigFromArgs reads --log-level and --log-file from command line
// arguments, ignoring every other flag. Accepted levels are 0 (silent),
// 1 (normal), 10 (verbose) and 100 (debug).
func ConfigFromArgs(args []string) (Config, error) {
	cfg := DefaultConfig()

	fs := pflag.NewFlagSet("logging", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	level := fs.Int("log-level", int(cfg.Level), "log level: 0=silent, 1=normal, 10=verbose, 100=debug")
	file := fs.String("log-file", "", "path to a log file")

	if err := fs.Parse(args); err != nil && !errors.Is(err, pflag.ErrHelp) {
		return cfg, fmt.Errorf("logging: parse flags: %w", err)
	}

	if fs.Changed("log-level") {
		switch Level(*level) {
		case LevelSuccess, LevelError, LevelInfo, LevelDebug:
			cfg.Level = Level(*level)
		default:
			return cfg, fmt.Errorf("%w: %d", ErrInvalidLevel, *level)
		}
	}
	if *file != "" {
		cfg.LogFile = *file
	}
	return cfg, nil
}
