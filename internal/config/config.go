package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	logs "github.com/danmuck/shmframe/internal/logging"
	"github.com/danmuck/shmframe/internal/protocol/session"
	"github.com/danmuck/shmframe/internal/shm"
)

// ConsumerConfig is the shmframectl config file.
type ConsumerConfig struct {
	Name           string      `toml:"name" yaml:"name"`
	Cameras        []string    `toml:"cameras" yaml:"cameras"`
	DrainToLatest  bool        `toml:"drain_to_latest" yaml:"drain_to_latest"`
	QueueDepth     int         `toml:"queue_depth" yaml:"queue_depth"`
	MaxPayloadSize int         `toml:"max_payload_size" yaml:"max_payload_size"`
	SegmentDir     string      `toml:"segment_dir" yaml:"segment_dir"`
	BusAddr        string      `toml:"bus_addr" yaml:"bus_addr"`
	BusToken       string      `toml:"bus_token" yaml:"bus_token"`
	HTTPAddr       string      `toml:"http_addr" yaml:"http_addr"`
	CorsOrigins    []string    `toml:"cors_origins" yaml:"cors_origins"`
	DropExpired    bool        `toml:"drop_expired" yaml:"drop_expired"`
	OpenRetry      RetryConfig `toml:"open_retry" yaml:"open_retry"`
	Log            LogConfig   `toml:"log" yaml:"log"`
}

// RetryConfig controls how long the consumer waits for the producer segment.
type RetryConfig struct {
	InitialMS  int     `toml:"initial_ms" yaml:"initial_ms"`
	Multiplier float64 `toml:"multiplier" yaml:"multiplier"`
	MaxMS      int     `toml:"max_ms" yaml:"max_ms"`
	Attempts   int     `toml:"attempts" yaml:"attempts"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Name:           "shmframe",
		Cameras:        []string{"forward_left"},
		DrainToLatest:  true,
		QueueDepth:     shm.DefaultQueueDepth,
		MaxPayloadSize: shm.DefaultMaxPayloadSize,
		SegmentDir:     shm.DefaultDir,
		BusAddr:        "127.0.0.1:14550",
		HTTPAddr:       "127.0.0.1:9180",
		CorsOrigins:    []string{"http://localhost:3000"},
		DropExpired:    true,
		OpenRetry: RetryConfig{
			InitialMS:  250,
			Multiplier: 2.0,
			MaxMS:      5000,
			Attempts:   0,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConsumerConfig reads a .toml, .yaml or .yml file over the defaults and
// validates the result.
func LoadConsumerConfig(path string) (ConsumerConfig, error) {
	cfg := DefaultConsumerConfig()
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = loadYAML(path, &cfg)
	default:
		err = loadTOML(path, &cfg)
	}
	if err != nil {
		return ConsumerConfig{}, err
	}
	if err := ValidateConsumerConfig(cfg); err != nil {
		return ConsumerConfig{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	logs.Debugf("config.LoadConsumerConfig loaded path=%s cameras=%v", path, cfg.Cameras)
	return cfg, nil
}

// loadTOML overlays only the keys present in the file onto cfg.
func loadTOML(path string, cfg *ConsumerConfig) error {
	var raw ConsumerConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		logs.Warnf("config.loadTOML unknown keys path=%s keys=%v", path, undecoded)
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("cameras") {
		cfg.Cameras = raw.Cameras
	}
	if meta.IsDefined("drain_to_latest") {
		cfg.DrainToLatest = raw.DrainToLatest
	}
	if meta.IsDefined("queue_depth") {
		cfg.QueueDepth = raw.QueueDepth
	}
	if meta.IsDefined("max_payload_size") {
		cfg.MaxPayloadSize = raw.MaxPayloadSize
	}
	if meta.IsDefined("segment_dir") {
		cfg.SegmentDir = strings.TrimSpace(raw.SegmentDir)
	}
	if meta.IsDefined("bus_addr") {
		cfg.BusAddr = strings.TrimSpace(raw.BusAddr)
	}
	if meta.IsDefined("bus_token") {
		cfg.BusToken = strings.TrimSpace(raw.BusToken)
	}
	if meta.IsDefined("http_addr") {
		cfg.HTTPAddr = strings.TrimSpace(raw.HTTPAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("drop_expired") {
		cfg.DropExpired = raw.DropExpired
	}
	if meta.IsDefined("open_retry", "initial_ms") {
		cfg.OpenRetry.InitialMS = raw.OpenRetry.InitialMS
	}
	if meta.IsDefined("open_retry", "multiplier") {
		cfg.OpenRetry.Multiplier = raw.OpenRetry.Multiplier
	}
	if meta.IsDefined("open_retry", "max_ms") {
		cfg.OpenRetry.MaxMS = raw.OpenRetry.MaxMS
	}
	if meta.IsDefined("open_retry", "attempts") {
		cfg.OpenRetry.Attempts = raw.OpenRetry.Attempts
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "format") {
		cfg.Log.Format = strings.TrimSpace(raw.Log.Format)
	}
	return nil
}

// loadYAML decodes into cfg directly; keys absent from the file keep their
// default values.
func loadYAML(path string, cfg *ConsumerConfig) error {
	data, err := readFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateConsumerConfig(cfg ConsumerConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("consumer config missing name")
	}
	if len(cfg.Cameras) == 0 {
		return fmt.Errorf("consumer config needs at least one camera")
	}
	if _, err := shm.ParseCameras(cfg.Cameras); err != nil {
		return err
	}
	if cfg.QueueDepth <= 0 {
		return fmt.Errorf("queue_depth must be positive, got %d", cfg.QueueDepth)
	}
	if cfg.MaxPayloadSize <= 0 {
		return fmt.Errorf("max_payload_size must be positive, got %d", cfg.MaxPayloadSize)
	}
	if strings.TrimSpace(cfg.SegmentDir) == "" {
		return fmt.Errorf("consumer config missing segment_dir")
	}
	if err := validateAddr("bus_addr", cfg.BusAddr, true); err != nil {
		return err
	}
	if err := validateAddr("http_addr", cfg.HTTPAddr, false); err != nil {
		return err
	}
	if cfg.OpenRetry.InitialMS < 0 || cfg.OpenRetry.MaxMS < 0 || cfg.OpenRetry.Attempts < 0 {
		return fmt.Errorf("open_retry values must not be negative")
	}
	if cfg.OpenRetry.Multiplier != 0 && cfg.OpenRetry.Multiplier < 1 {
		return fmt.Errorf("open_retry.multiplier must be >= 1, got %v", cfg.OpenRetry.Multiplier)
	}
	if lvl := strings.TrimSpace(cfg.Log.Level); lvl != "" {
		if _, ok := logs.ParseLevel(lvl); !ok {
			return fmt.Errorf("unknown log level %q", lvl)
		}
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Log.Format)) {
	case "", "json", "text", "color":
	default:
		return fmt.Errorf("unknown log format %q", cfg.Log.Format)
	}
	return nil
}

func validateAddr(key, addr string, required bool) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		if required {
			return fmt.Errorf("consumer config missing %s", key)
		}
		return nil
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s %q: %w", key, addr, err)
	}
	return nil
}

// ShmOptions converts the channel keys into client handle options.
func (c ConsumerConfig) ShmOptions() (shm.Options, error) {
	cams, err := shm.ParseCameras(c.Cameras)
	if err != nil {
		return shm.Options{}, err
	}
	return shm.Options{
		Cameras:        cams,
		Role:           shm.RoleClient,
		MaxPayloadSize: c.MaxPayloadSize,
		QueueDepth:     c.QueueDepth,
		Dir:            c.SegmentDir,
	}.WithDefaults(), nil
}

// SessionConfig converts open_retry into runtime polling and backoff settings.
func (c ConsumerConfig) SessionConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.MaxOpenAttempts = c.OpenRetry.Attempts
	cfg.Backoff.InitialDelay = time.Duration(c.OpenRetry.InitialMS) * time.Millisecond
	cfg.Backoff.Multiplier = c.OpenRetry.Multiplier
	cfg.Backoff.MaxDelay = time.Duration(c.OpenRetry.MaxMS) * time.Millisecond
	return cfg.WithDefaults()
}
