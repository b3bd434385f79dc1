// Package config loads the relayd configuration from a TOML file.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"
)

// Config is the relayd configuration.
type Config struct {
	// Listen is the host:port the WebSocket server binds to.
	Listen string `toml:"listen"`

	// MappingFile is the JSON file holding symbol mappings. It uses the
	// same layout clients of the original service expect, so an existing
	// config.json drops in unchanged.
	MappingFile string `toml:"mapping_file"`

	Log   Log   `toml:"log"`
	Paper Paper `toml:"paper"`
}

// Log configures the rotating file log. An empty path logs to stderr only.
type Log struct {
	Path       string `toml:"path"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
	MaxAge     int    `toml:"max_age"`
	Compress   bool   `toml:"compress"`
	Level      string `toml:"level"`
}

// Paper configures the simulated trading account.
type Paper struct {
	Balance  float64          `toml:"balance"`
	Currency string           `toml:"currency"`
	Leverage int              `toml:"leverage"`
	Login    int64            `toml:"login"`
	Server   string           `toml:"server"`
	Name     string           `toml:"name"`
	Quotes   map[string]Quote `toml:"quotes"`
}

// Quote is one instrument's market snapshot.
type Quote struct {
	Bid       float64 `toml:"bid"`
	Ask       float64 `toml:"ask"`
	TickSize  float64 `toml:"tick_size"`
	TickValue float64 `toml:"tick_value"`
	Digits    int     `toml:"digits"`
}

// Valid applies defaults and validates the config.
func (c *Config) Valid() error {
	if strings.TrimSpace(c.Listen) == "" {
		c.Listen = "localhost:8766"
	}

	if strings.TrimSpace(c.MappingFile) == "" {
		c.MappingFile = "config.json"
	}

	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level invalid: %q", c.Log.Level)
	}

	if c.Log.MaxSize <= 0 {
		c.Log.MaxSize = 100
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAge <= 0 {
		c.Log.MaxAge = 28
	}

	for symbol, quote := range c.Paper.Quotes {
		if quote.Bid <= 0 || quote.Ask <= 0 {
			return fmt.Errorf("paper.quotes.%s: bid and ask must be positive", symbol)
		}
		if quote.Ask < quote.Bid {
			return fmt.Errorf("paper.quotes.%s: ask below bid", symbol)
		}
	}

	return nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	config := new(Config)
	if err := config.Valid(); err != nil {
		panic(err)
	}
	return config
}

// Parse parses config from file.
func Parse(filePath string) (*Config, error) {
	config := new(Config)
	_, err := toml.DecodeFile(filePath, config)
	if err != nil {
		return nil, err
	}

	return config, config.Valid()
}
