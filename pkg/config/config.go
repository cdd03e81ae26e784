// Package config provides the settings shared by the table codecs, the API
// connector, and the tablectl command.
//
// The settings are organized into logical sections:
//   - Log: level and encoding for the global zap logger
//   - CSV: default delimiter for reading and writing
//   - Avro: schema inference sample size and default codec
//   - HTTP: request timeout and user agent for remote reads and connectors
//
// Example usage:
//
//	s, err := config.Load("nebula-table.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	config.SetCurrent(s)
package config

import (
	"os"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ajitpratap0/nebula-table/pkg/errors"
)

// Settings is the root configuration structure.
type Settings struct {
	// Log configures the global logger
	Log LogSettings `mapstructure:"log" yaml:"log"`

	// TempDir is where codecs create files when no path is given.
	// Empty means os.TempDir().
	TempDir string `mapstructure:"temp_dir" yaml:"temp_dir"`

	CSV  CSVSettings  `mapstructure:"csv" yaml:"csv"`
	Avro AvroSettings `mapstructure:"avro" yaml:"avro"`
	HTTP HTTPSettings `mapstructure:"http" yaml:"http"`
}

// LogSettings contains logging settings
type LogSettings struct {
	Level       string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Encoding    string `mapstructure:"encoding" yaml:"encoding" validate:"oneof=json console"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// CSVSettings contains CSV codec defaults
type CSVSettings struct {
	// Delimiter is a single character field separator
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter" validate:"len=1"`
}

// AvroSettings contains Avro codec defaults
type AvroSettings struct {
	// SampleSize is how many rows schema inference inspects
	SampleSize int `mapstructure:"sample_size" yaml:"sample_size" validate:"gte=1"`
	// Codec is the default block codec
	Codec string `mapstructure:"codec" yaml:"codec" validate:"oneof=null deflate snappy"`
}

// HTTPSettings contains settings for remote table reads and API connectors
type HTTPSettings struct {
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// Default returns the built-in settings
func Default() *Settings {
	return &Settings{
		Log: LogSettings{
			Level:    "info",
			Encoding: "json",
		},
		CSV: CSVSettings{
			Delimiter: ",",
		},
		Avro: AvroSettings{
			SampleSize: 100,
			Codec:      "null",
		},
		HTTP: HTTPSettings{
			Timeout:   30 * time.Second,
			UserAgent: "nebula-table/1.0",
		},
	}
}

var validate = validator.New()

// Validate checks field constraints
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid settings")
	}
	return nil
}

// TempDirectory returns the directory for temp files
func (s *Settings) TempDirectory() string {
	if s.TempDir != "" {
		return s.TempDir
	}
	return os.TempDir()
}

// DelimiterRune returns the CSV delimiter as a rune, defaulting to comma
func (c CSVSettings) DelimiterRune() rune {
	for _, r := range c.Delimiter {
		return r
	}
	return ','
}

var (
	current   = Default()
	currentMu sync.RWMutex
)

// Current returns the active settings
func Current() *Settings {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}

// SetCurrent replaces the active settings. A nil s restores the defaults.
func SetCurrent(s *Settings) {
	if s == nil {
		s = Default()
	}
	currentMu.Lock()
	defer currentMu.Unlock()
	current = s
}
