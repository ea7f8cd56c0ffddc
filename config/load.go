package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix marks environment variables read by Load.
	EnvPrefix = "SMRKIT_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// nestedPrefixes map environment name prefixes to keys deeper than
// section.field.
var nestedPrefixes = []struct{ env, key string }{
	{"telemetry_tracing_", "telemetry.tracing."},
	{"telemetry_metrics_", "telemetry.metrics."},
	{"secrets_options_", "secrets.options."},
}

// Load reads configuration with this precedence, highest first:
//  1. Environment variables (SMRKIT_LOGGING_LEVEL, SMRKIT_SECRETS_BACKEND, ...)
//  2. The YAML file at path, when path is not empty
//  3. Default()
//
// The file must be at most 1MB and must not be writable by group or others.
//
//	SMRKIT_SECRETS_CACHE_TTL        -> secrets.cache_ttl
//	SMRKIT_TELEMETRY_TRACING_ENABLED -> telemetry.tracing.enabled
//	SMRKIT_SECRETS_OPTIONS_PATH     -> secrets.options.path
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := Default()
	// Lists and maps that are set replace the defaults instead of merging.
	if k.Exists("secrets.options") {
		cfg.Secrets.Options = nil
	}
	if k.Exists("secrets.allow_overwrite") {
		cfg.Secrets.AllowOverwrite = nil
	}
	if k.Exists("sheets.scopes") {
		cfg.Sheets.Scopes = nil
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps SMRKIT_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, p := range nestedPrefixes {
		if rest, ok := strings.CutPrefix(lower, p.env); ok {
			return p.key + rest
		}
	}
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("config: stat: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config: %s is too large: %d bytes (max %d)", path, info.Size(), maxConfigFileSize)
	}
	if perm := info.Mode().Perm(); perm&0o022 != 0 {
		return nil, fmt.Errorf("config: %s is writable by others (mode %v)", path, perm)
	}
	return io.ReadAll(io.LimitReader(f, maxConfigFileSize))
}
