// Package config resolves umlflow settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ravi-parthasarathy/umlflow/pkg/kroki"
	"github.com/ravi-parthasarathy/umlflow/pkg/nodes"
)

// Environment variable names.
const (
	EnvKrokiURL   = "KROKI_URL"
	EnvOutputDir  = "UMLFLOW_OUTPUT_DIR"
	EnvPromptsDir = "UMLFLOW_PROMPTS_DIR"
	EnvAddr       = "UMLFLOW_ADDR"
	EnvLogLevel   = "LOG_LEVEL"
	EnvLogFormat  = "LOG_FORMAT"
)

// DefaultAddr is where serve listens when nothing else is configured.
const DefaultAddr = ":8188"

// Config holds process-wide settings. Command-line flags override it.
type Config struct {
	KrokiURL   string
	OutputDir  string
	PromptsDir string
	Addr       string
	LogLevel   string
	LogFormat  string
}

// Merge returns c with every non-blank field of override applied.
func (c Config) Merge(override Config) Config {
	result := c
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&result.KrokiURL, override.KrokiURL)
	set(&result.OutputDir, override.OutputDir)
	set(&result.PromptsDir, override.PromptsDir)
	set(&result.Addr, override.Addr)
	set(&result.LogLevel, override.LogLevel)
	set(&result.LogFormat, override.LogFormat)
	return result
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		KrokiURL:  kroki.DefaultBaseURL,
		OutputDir: nodes.DefaultOutputDir,
		Addr:      DefaultAddr,
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads the given .env files (".env" when none are named) into the
// process environment without overriding variables already set, then
// returns the defaults merged with the environment. A missing .env file
// is not an error.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
		slog.Debug(".env file not loaded", "error", err)
	}
	return Defaults().Merge(FromEnv()), nil
}

// FromEnv reads settings from the environment only.
func FromEnv() Config {
	return Config{
		KrokiURL:   os.Getenv(EnvKrokiURL),
		OutputDir:  os.Getenv(EnvOutputDir),
		PromptsDir: os.Getenv(EnvPromptsDir),
		Addr:       os.Getenv(EnvAddr),
		LogLevel:   os.Getenv(EnvLogLevel),
		LogFormat:  os.Getenv(EnvLogFormat),
	}
}
