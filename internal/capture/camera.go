package capture

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"listcart/internal/platform/config"
)

// Camera produces one encoded still image per call.
type Camera interface {
	Capture(ctx context.Context) ([]byte, error)
}

// CommandCamera runs a still-capture program that writes an image to stdout.
type CommandCamera struct {
	argv []string
}

func NewCommandCamera(argv []string) *CommandCamera {
	return &CommandCamera{argv: argv}
}

func (c *CommandCamera) Capture(ctx context.Context) ([]byte, error) {
	if len(c.argv) == 0 {
		return nil, fmt.Errorf("camera command is empty")
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("run %s: %w: %s", c.argv[0], err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("run %s: no image on stdout", c.argv[0])
	}
	return stdout.Bytes(), nil
}

// FileCamera returns the contents of a fixed file, for bench testing.
type FileCamera struct {
	path string
}

func NewFileCamera(path string) *FileCamera {
	return &FileCamera{path: path}
}

func (c *FileCamera) Capture(context.Context) ([]byte, error) {
	b, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read capture file: %w", err)
	}
	return b, nil
}

// NewCamera builds the camera selected by cfg.
func NewCamera(cfg config.CameraConfig) (Camera, error) {
	switch cfg.Kind {
	case "command":
		return NewCommandCamera(cfg.Command), nil
	case "file":
		return NewFileCamera(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown camera kind %q", cfg.Kind)
	}
}
