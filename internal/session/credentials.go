package session

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Credentials are the bootstrap username and password, read once at start.
type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LogValue keeps the password out of logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(slog.String("username", c.Username), slog.String("password", "[REDACTED]"))
}

// LoadCredentials reads a YAML credentials file. Files readable or writable
// by other users are refused.
func LoadCredentials(path string) (Credentials, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("stat credentials: %w", err)
	}
	if perm := info.Mode().Perm(); perm&0o006 != 0 {
		return Credentials{}, fmt.Errorf("credentials file %s has mode %#o; it must not be accessible to other users", path, perm)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("read credentials: %w", err)
	}
	var creds Credentials
	if err := yaml.Unmarshal(raw, &creds); err != nil {
		return Credentials{}, fmt.Errorf("parse credentials: %w", err)
	}
	if creds.Username == "" || creds.Password == "" {
		return Credentials{}, fmt.Errorf("credentials file %s: username and password are required", path)
	}
	return creds, nil
}
