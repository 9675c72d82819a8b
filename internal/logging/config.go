package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

const (
	EnvLogLevel     = "SHMFRAME_LOG_LEVEL"
	EnvLogTimestamp = "SHMFRAME_LOG_TIMESTAMP"
	EnvLogNoColor   = "SHMFRAME_LOG_NOCOLOR"
	EnvLogBypass    = "SHMFRAME_LOG_BYPASS"
	EnvLogFormat    = "SHMFRAME_LOG_FORMAT"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config is the resolved logger setup.
type Config struct {
	Level     zerolog.Level
	Format    string // json, text, color; empty autodetects
	Timestamp bool
	NoColor   bool
	Bypass    bool
	Out       io.Writer
}

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

func Configure(profile Profile) {
	ConfigureWith(profile, "", "")
}

// ConfigureWith applies profile defaults, then file-level level/format, then env
// overrides. Only the first call has any effect.
func ConfigureWith(profile Profile, level, format string) {
	configureOnce.Do(func() {
		cfg := defaultConfig(profile)
		if lvl, ok := parseLevel(level); ok {
			cfg.Level = lvl
		}
		if f := strings.ToLower(strings.TrimSpace(format)); f != "" {
			cfg.Format = f
		}
		applyEnvOverrides(&cfg)
		apply(cfg)
	})
}

func defaultConfig(profile Profile) Config {
	cfg := Config{Out: os.Stderr}
	switch profile {
	case ProfileTest:
		cfg.Level = zerolog.DebugLevel
		cfg.Timestamp = false
		cfg.Format = "text"
	default:
		cfg.Level = zerolog.InfoLevel
		cfg.Timestamp = true
	}
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogBypass)); ok {
		cfg.Bypass = v
	}
	if f := strings.ToLower(strings.TrimSpace(os.Getenv(EnvLogFormat))); f != "" {
		cfg.Format = f
	}
}

func apply(cfg Config) {
	var writer io.Writer = cfg.Out
	switch {
	case cfg.Bypass:
		writer = io.Discard
	case cfg.Format != "json":
		console := zerolog.ConsoleWriter{Out: cfg.Out, TimeFormat: "15:04:05.000"}
		switch cfg.Format {
		case "text":
			console.NoColor = true
		case "color":
			console.NoColor = cfg.NoColor
		default:
			console.NoColor = cfg.NoColor || !isTerminal(cfg.Out)
		}
		if !cfg.Timestamp {
			console.PartsOrder = []string{
				zerolog.LevelFieldName,
				zerolog.MessageFieldName,
			}
		}
		writer = console
	}

	l := zerolog.New(writer).Level(cfg.Level)
	if cfg.Timestamp {
		l = l.With().Timestamp().Logger()
	}
	setLogger(l)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ParseLevel exposes the level aliases accepted by env and config files.
func ParseLevel(raw string) (zerolog.Level, bool) {
	return parseLevel(raw)
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none", "inactive":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
