package symbolmap

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestMapper_ResolveExact(t *testing.T) {
	path := writeConfig(t, `{
		"symbol_mapping": {
			"BTCUSDT": {"symbol": "BTCUSD", "volume_ratio": 0.01},
			"NQ": {"symbol": "USTEC", "volume_ratio": 1.0}
		}
	}`)

	m, err := New(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "BTCUSD", m.Resolve("BTCUSDT"))
	assert.Equal(t, "USTEC", m.Resolve("NQ"))
}

func TestMapper_ResolveContainment(t *testing.T) {
	path := writeConfig(t, `{
		"symbol_mapping": {
			"BTC": {"symbol": "BTCUSD", "volume_ratio": 1.0},
			"BTCUSDT": {"symbol": "BTCUSD.x", "volume_ratio": 0.01}
		}
	}`)

	m, err := New(path, nil)
	require.NoError(t, err)

	// Decorated feed names resolve through the longest configured key.
	assert.Equal(t, "BTCUSD.x", m.Resolve("BTCUSDT.P"))
	assert.Equal(t, "BTCUSD", m.Resolve("BTC-PERP"))
}

func TestMapper_ResolvePassthrough(t *testing.T) {
	m, err := New("", nil)
	require.NoError(t, err)

	assert.Equal(t, "XAUUSD", m.Resolve("XAUUSD"))
	assert.Equal(t, 1.0, m.VolumeRatio("XAUUSD"))
}

func TestMapper_VolumeScaling(t *testing.T) {
	path := writeConfig(t, `{
		"symbol_mapping": {
			"BTCUSDT": {"symbol": "BTCUSD", "volume_ratio": 0.1}
		}
	}`)

	m, err := New(path, nil)
	require.NoError(t, err)

	assert.InDelta(t, 0.1, m.VolumeRatio("BTCUSDT"), 1e-9)
	assert.InDelta(t, 0.5, m.MapVolume("BTCUSDT", 5), 1e-9)
	assert.InDelta(t, 3.0, m.MapVolume("UNMAPPED", 3), 1e-9)
}

func TestMapper_ReverseResolve(t *testing.T) {
	path := writeConfig(t, `{
		"symbol_mapping": {
			"NQ": {"symbol": "USTEC", "volume_ratio": 1.0}
		}
	}`)

	m, err := New(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "NQ", m.ReverseResolve("USTEC"))
	assert.Equal(t, "EURUSD", m.ReverseResolve("EURUSD"))
}

func TestMapper_AddPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	m, err := New(path, nil)
	require.NoError(t, err)

	require.NoError(t, m.Add("ES", "US500", 0.5))
	assert.Equal(t, "US500", m.Resolve("ES"))
	assert.Equal(t, "ES", m.ReverseResolve("US500"))

	reloaded, err := New(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "US500", reloaded.Resolve("ES"))
	assert.InDelta(t, 0.5, reloaded.VolumeRatio("ES"), 1e-9)
}

func TestMapper_AddValidation(t *testing.T) {
	m, err := New("", nil)
	require.NoError(t, err)

	assert.ErrorIs(t, m.Add("", "US500", 1), ErrEmptySymbol)
	assert.ErrorIs(t, m.Add("ES", "", 1), ErrEmptySymbol)

	// A zero ratio falls back to 1.0 rather than zeroing every volume.
	require.NoError(t, m.Add("ES", "US500", 0))
	assert.InDelta(t, 1.0, m.VolumeRatio("ES"), 1e-9)
}

func TestMapper_Remove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	m, err := New(path, nil)
	require.NoError(t, err)
	require.NoError(t, m.Add("ES", "US500", 1))

	require.NoError(t, m.Remove("ES"))
	assert.Equal(t, "ES", m.Resolve("ES"))
	assert.Equal(t, "US500", m.ReverseResolve("US500"))

	assert.ErrorIs(t, m.Remove("ES"), ErrNotFound)

	reloaded, err := New(path, nil)
	require.NoError(t, err)
	assert.Empty(t, reloaded.All())
}

func TestMapper_LoadLegacyFormat(t *testing.T) {
	path := writeConfig(t, `{
		"symbol_mapping": {
			"BTCUSDT": "BTCUSD",
			"NQ": {"symbol": "USTEC", "volume_ratio": 2.0}
		}
	}`)

	m, err := New(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "BTCUSD", m.Resolve("BTCUSDT"))
	assert.InDelta(t, 1.0, m.VolumeRatio("BTCUSDT"), 1e-9)
	assert.InDelta(t, 2.0, m.VolumeRatio("NQ"), 1e-9)
}

func TestMapper_SavePreservesExtraKeys(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"host": "localhost", "port": 8765},
		"symbol_mapping": {
			"NQ": {"symbol": "USTEC", "volume_ratio": 1.0}
		}
	}`)

	m, err := New(path, nil)
	require.NoError(t, err)
	require.NoError(t, m.Add("ES", "US500", 1))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var root map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &root))
	assert.Contains(t, root, "server")
	assert.Contains(t, root, "symbol_mapping")

	var server struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}
	require.NoError(t, json.Unmarshal(root["server"], &server))
	assert.Equal(t, "localhost", server.Host)
	assert.Equal(t, 8765, server.Port)
}

func TestMapper_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.json")

	m, err := New(path, nil)
	require.NoError(t, err)
	assert.Empty(t, m.All())
}

func TestMapper_MalformedFile(t *testing.T) {
	path := writeConfig(t, `{"symbol_mapping": [`)

	_, err := New(path, nil)
	assert.Error(t, err)
}

func TestMapper_Clear(t *testing.T) {
	m, err := New("", nil)
	require.NoError(t, err)
	require.NoError(t, m.Add("ES", "US500", 1))
	require.NoError(t, m.Add("NQ", "USTEC", 1))

	require.NoError(t, m.Clear())
	assert.Empty(t, m.All())
	assert.Equal(t, "ES", m.Resolve("ES"))
}

func TestMapper_All(t *testing.T) {
	m, err := New("", nil)
	require.NoError(t, err)
	require.NoError(t, m.Add("ES", "US500", 0.5))

	all := m.All()
	require.Len(t, all, 1)
	assert.Equal(t, Mapping{Symbol: "US500", VolumeRatio: 0.5}, all["ES"])

	// Mutating the copy must not touch the mapper.
	all["ES"] = Mapping{Symbol: "X", VolumeRatio: 9}
	assert.Equal(t, "US500", m.Resolve("ES"))
}
