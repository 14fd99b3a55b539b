package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type config struct {
	Port           string         `yaml:"port"`
	LogLevel       string         `yaml:"logLevel"`
	ProxyURL       string         `yaml:"proxyURL"`
	ModelsURL      string         `yaml:"modelsURL"`
	AllowedOrigins []string       `yaml:"allowedOrigins"`
	Upstream       upstreamConfig `yaml:"upstream"`
}

type upstreamConfig struct {
	BaseURL string `yaml:"baseURL"`
	APIKey  string `yaml:"apiKey"`
}

const defaultPort = "8080"

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	type rawConfig config

	var raw rawConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.LogLevel != "" {
		if _, err := parseLogLevel(raw.LogLevel); err != nil {
			return err
		}
	}

	*c = config(raw)
	return nil
}

// loadConfig reads the YAML config at path. A missing file is not an error, every field has a
// default. Environment variables fill in what the file leaves empty.
func loadConfig(path string) (config, error) {
	cfg := config{}

	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return config{}, fmt.Errorf("error opening config file: %w", err)
	default:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *config) applyDefaults() {
	if c.Port == "" {
		c.Port = os.Getenv("PORT")
	}
	if c.Port == "" {
		c.Port = defaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ProxyURL == "" {
		c.ProxyURL = "http://127.0.0.1:" + c.Port + "/api/chat"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	// A missing key is reported per request by the proxy, not at startup.
	if c.Upstream.APIKey == "" {
		c.Upstream.APIKey = os.Getenv("FIREWORKS_API_KEY")
	}
}

func parseLogLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return l, nil
}
