// Package config loads the server configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Config is everything the serve command needs.
type Config struct {
	// Listen is the TCP address to serve on.
	Listen string `yaml:"listen"`
	// ServiceName appears in the service description document.
	ServiceName string `yaml:"service_name"`
	// URL is the advertised endpoint in the service description.
	URL string `yaml:"url"`
	// AssetsDir optionally serves static files next to the RPC endpoints.
	AssetsDir string `yaml:"assets_dir"`
	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Listen:      ":8080",
		ServiceName: "relay",
		URL:         "http://localhost:8080/",
	}
}

// DefaultPath resolves ~/.relay/config.yaml.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".relay", "config.yaml"), nil
}

// Load reads the configuration from path, or from the default path when path
// is empty. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return cfg, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
