package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relayd.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParse(t *testing.T) {
	path := writeConfig(t, `
listen = "0.0.0.0:9001"
mapping_file = "/etc/relayd/mappings.json"

[log]
path = "/var/log/relayd.log"
max_size = 50
level = "debug"

[paper]
balance = 25000.0
currency = "EUR"
leverage = 50
login = 777
server = "Test-Server"
name = "Integration"

[paper.quotes.BTCUSD]
bid = 64000.0
ask = 64000.5
tick_size = 0.01
tick_value = 0.01
digits = 2
`)

	c, err := Parse(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9001", c.Listen)
	assert.Equal(t, "/etc/relayd/mappings.json", c.MappingFile)
	assert.Equal(t, "/var/log/relayd.log", c.Log.Path)
	assert.Equal(t, 50, c.Log.MaxSize)
	assert.Equal(t, "debug", c.Log.Level)
	assert.InDelta(t, 25000, c.Paper.Balance, 1e-9)
	assert.Equal(t, "EUR", c.Paper.Currency)

	quote, ok := c.Paper.Quotes["BTCUSD"]
	require.True(t, ok)
	assert.InDelta(t, 64000.0, quote.Bid, 1e-9)
	assert.InDelta(t, 64000.5, quote.Ask, 1e-9)
	assert.Equal(t, 2, quote.Digits)
}

func TestParse_Defaults(t *testing.T) {
	path := writeConfig(t, ``)

	c, err := Parse(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8766", c.Listen)
	assert.Equal(t, "config.json", c.MappingFile)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, 100, c.Log.MaxSize)
	assert.Equal(t, 3, c.Log.MaxBackups)
	assert.Equal(t, 28, c.Log.MaxAge)
}

func TestParse_MissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestParse_InvalidLevel(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "loud"
`)

	_, err := Parse(path)
	assert.ErrorContains(t, err, "log.level")
}

func TestParse_InvalidQuote(t *testing.T) {
	path := writeConfig(t, `
[paper.quotes.XYZ]
bid = 100.0
ask = 99.0
`)

	_, err := Parse(path)
	assert.ErrorContains(t, err, "ask below bid")

	path = writeConfig(t, `
[paper.quotes.XYZ]
bid = 0.0
ask = 1.0
`)

	_, err = Parse(path)
	assert.ErrorContains(t, err, "must be positive")
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "localhost:8766", c.Listen)
	assert.Equal(t, "config.json", c.MappingFile)
	assert.Equal(t, "info", c.Log.Level)
}
