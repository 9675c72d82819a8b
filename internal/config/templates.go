package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Template renders the default consumer config as "toml" or "yaml".
func Template(format string) (string, error) {
	cfg := DefaultConsumerConfig()
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "toml":
		b, err := toml.Marshal(cfg)
		if err != nil {
			return "", fmt.Errorf("render toml template: %w", err)
		}
		return string(b), nil
	case "yaml", "yml":
		b, err := yaml.Marshal(cfg)
		if err != nil {
			return "", fmt.Errorf("render yaml template: %w", err)
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("unknown config format: %s", format)
	}
}

// FormatForPath picks the template format from a file extension.
func FormatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	}
	return "toml"
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template(FormatForPath(path))
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config dir %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	return data, nil
}
