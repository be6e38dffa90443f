// Package config defines the launch-time configuration surface for jsond.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults for the configuration surface.
const (
	DefaultPort         = 3001
	DefaultHost         = "0.0.0.0"
	DefaultReadTimeout  = 30
	DefaultWriteTimeout = 30
)

// Options holds all launch-time settings. None are re-negotiable at runtime.
type Options struct {
	// File is the path to the backing JSON data file.
	File string `json:"file,omitempty" yaml:"file,omitempty"`

	// Host is the bind address.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// Port is the HTTP listen port.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// Delay is an artificial latency in milliseconds applied uniformly
	// to every handled request.
	Delay int `json:"delay,omitempty" yaml:"delay,omitempty"`

	// NoCORS disables the permissive cross-origin headers.
	NoCORS bool `json:"noCors,omitempty" yaml:"noCors,omitempty"`

	// Watch enables polling the data file for external changes.
	Watch bool `json:"watch,omitempty" yaml:"watch,omitempty"`

	// ReadOnly disables all state-mutating verbs with 403.
	ReadOnly bool `json:"readOnly,omitempty" yaml:"readOnly,omitempty"`

	// ReadTimeout is the HTTP read timeout in seconds.
	ReadTimeout int `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`

	// WriteTimeout is the HTTP write timeout in seconds.
	WriteTimeout int `json:"writeTimeout,omitempty" yaml:"writeTimeout,omitempty"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`

	// LogFormat is the log output format (text, json).
	LogFormat string `json:"logFormat,omitempty" yaml:"logFormat,omitempty"`
}

// Default returns an Options populated with default values.
func Default() *Options {
	return &Options{
		Host:         DefaultHost,
		Port:         DefaultPort,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// LoadFromFile reads an options file in YAML or JSON format, applied on top
// of defaults. The format is inferred from the file extension.
func LoadFromFile(path string) (*Options, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read options file: %w", err)
	}

	opts := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(raw, opts); err != nil {
			return nil, fmt.Errorf("parse options file %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(raw, opts); err != nil {
			return nil, fmt.Errorf("parse options file %s: %w", path, err)
		}
	}

	return opts, nil
}

// Validate checks option values for consistency.
func (o *Options) Validate() error {
	if o.File == "" {
		return fmt.Errorf("data file path is required")
	}
	if o.Port < 0 || o.Port > 65535 {
		return fmt.Errorf("invalid port %d", o.Port)
	}
	if o.Delay < 0 {
		return fmt.Errorf("delay must not be negative, got %d", o.Delay)
	}
	return nil
}

// Addr returns the host:port bind address.
func (o *Options) Addr() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}
