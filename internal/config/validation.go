package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	if c.Watcher.PollIntervalMs < 50 {
		errs = append(errs, ValidationError{
			Field:   "watcher.poll_interval_ms",
			Message: fmt.Sprintf("must be at least 50, got %d", c.Watcher.PollIntervalMs),
		})
	}

	if c.History.Path == "" {
		errs = append(errs, ValidationError{Field: "history.path", Message: "must not be empty"})
	}
	if c.History.Cap < 1 {
		errs = append(errs, ValidationError{
			Field:   "history.cap",
			Message: fmt.Sprintf("must be at least 1, got %d", c.History.Cap),
		})
	}

	if c.Images.MaxBytes < 1 {
		errs = append(errs, ValidationError{Field: "images.max_bytes", Message: "must be positive"})
	}
	if c.Images.MaxEdge < 16 {
		errs = append(errs, ValidationError{
			Field:   "images.max_edge",
			Message: fmt.Sprintf("must be at least 16, got %d", c.Images.MaxEdge),
		})
	}
	if c.Images.ThumbEdge < 16 || c.Images.ThumbEdge > c.Images.MaxEdge {
		errs = append(errs, ValidationError{
			Field:   "images.thumb_edge",
			Message: fmt.Sprintf("must be in [16, max_edge], got %d", c.Images.ThumbEdge),
		})
	}
	if c.Images.Workers < 1 {
		errs = append(errs, ValidationError{Field: "images.workers", Message: "must be at least 1"})
	}

	if c.Paste.SettleDelayMs < 0 {
		errs = append(errs, ValidationError{Field: "paste.settle_delay_ms", Message: "must not be negative"})
	}
	if c.Paste.TimeoutMs < 100 {
		errs = append(errs, ValidationError{
			Field:   "paste.timeout_ms",
			Message: fmt.Sprintf("must be at least 100, got %d", c.Paste.TimeoutMs),
		})
	}

	if c.IPC.Enabled {
		if c.IPC.SocketPath == "" {
			errs = append(errs, ValidationError{Field: "ipc.socket_path", Message: "must not be empty"})
		}
		if c.IPC.MaxConnections < 1 {
			errs = append(errs, ValidationError{Field: "ipc.max_connections", Message: "must be at least 1"})
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error; got %q", c.Logging.Level),
		})
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("must be text or json; got %q", c.Logging.Format),
		})
	}
	switch c.Logging.Output {
	case "stdout", "stderr":
	case "file":
		if c.Logging.FilePath == "" {
			errs = append(errs, ValidationError{Field: "logging.file_path", Message: "required when output is file"})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("must be stdout, stderr, or file; got %q", c.Logging.Output),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
