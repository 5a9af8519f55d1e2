package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Client is the configuration of cmd/capture-client.
type Client struct {
	IdPURL          string        `yaml:"idp_url"`
	IssuerURL       string        `yaml:"issuer_url"`
	CredentialsFile string        `yaml:"credentials_file"`
	Debounce        time.Duration `yaml:"debounce"`
	RefreshSkew     time.Duration `yaml:"refresh_skew"`
	RefreshAttempts int           `yaml:"refresh_attempts"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	Camera          CameraConfig  `yaml:"camera"`
	Trigger         TriggerConfig `yaml:"trigger"`
	Image           ImageConfig   `yaml:"image"`
}

// CameraConfig selects how frames are acquired. Kind "command" runs Command
// and reads a JPEG from its stdout; kind "file" reads Path on every capture.
type CameraConfig struct {
	Kind    string   `yaml:"kind"`
	Command []string `yaml:"command"`
	Path    string   `yaml:"path"`
}

// TriggerConfig selects the capture trigger source: "signal" (SIGUSR1) or
// "stdin" (one trigger per input line).
type TriggerConfig struct {
	Kind string `yaml:"kind"`
}

// ImageConfig bounds the normalized upload image.
type ImageConfig struct {
	MaxWidth  int `yaml:"max_width"`
	MaxHeight int `yaml:"max_height"`
	Quality   int `yaml:"quality"`
}

// DefaultClient returns the client defaults applied before the file is read.
func DefaultClient() Client {
	return Client{
		IdPURL:          "http://localhost:8080",
		IssuerURL:       "http://localhost:8080",
		CredentialsFile: "./credentials.yaml",
		Debounce:        3 * time.Second,
		RefreshSkew:     60 * time.Second,
		RefreshAttempts: 3,
		RequestTimeout:  10 * time.Second,
		LogLevel:        "info",
		LogFormat:       "json",
		Camera:          CameraConfig{Kind: "command", Command: []string{"libcamera-jpeg", "-n", "-o", "-"}},
		Trigger:         TriggerConfig{Kind: "signal"},
		Image:           ImageConfig{MaxWidth: 2048, MaxHeight: 2048, Quality: 85},
	}
}

// LoadClient reads the YAML client configuration at path over the defaults,
// then applies environment overrides. An empty path uses defaults only.
func LoadClient(path string) (Client, error) {
	cfg := DefaultClient()
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 - operator supplied path
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.IdPURL = getEnv("LISTCART_IDP_URL", cfg.IdPURL)
	cfg.IssuerURL = getEnv("LISTCART_ISSUER_URL", cfg.IssuerURL)
	cfg.CredentialsFile = getEnv("LISTCART_CREDENTIALS_FILE", cfg.CredentialsFile)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the client cannot run with.
func (c Client) Validate() error {
	if c.IdPURL == "" || c.IssuerURL == "" {
		return fmt.Errorf("idp_url and issuer_url are required")
	}
	if c.CredentialsFile == "" {
		return fmt.Errorf("credentials_file is required")
	}
	if c.Debounce < 0 || c.RefreshSkew < 0 {
		return fmt.Errorf("debounce and refresh_skew must not be negative")
	}
	if c.RefreshAttempts < 1 {
		return fmt.Errorf("refresh_attempts must be at least 1")
	}
	switch c.Camera.Kind {
	case "command":
		if len(c.Camera.Command) == 0 {
			return fmt.Errorf("camera.command is required for command cameras")
		}
	case "file":
		if c.Camera.Path == "" {
			return fmt.Errorf("camera.path is required for file cameras")
		}
	default:
		return fmt.Errorf("unknown camera kind %q", c.Camera.Kind)
	}
	switch c.Trigger.Kind {
	case "signal", "stdin":
	default:
		return fmt.Errorf("unknown trigger kind %q", c.Trigger.Kind)
	}
	if c.Image.Quality < 1 || c.Image.Quality > 100 {
		return fmt.Errorf("image.quality must be between 1 and 100")
	}
	return nil
}
