// Package symbolmap translates trading-platform symbols to MT5 symbols and
// scales order volumes. Mappings live in a JSON config file under the
// "symbol_mapping" key and survive daemon restarts.
package symbolmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const configKey = "symbol_mapping"

var (
	ErrNotFound    = errors.New("symbolmap: mapping not found")
	ErrEmptySymbol = errors.New("symbolmap: empty symbol")
)

// Mapping is one translation entry: the MT5 symbol a platform symbol maps to
// and the lot-size ratio applied to its volumes.
type Mapping struct {
	Symbol      string  `json:"symbol"`
	VolumeRatio float64 `json:"volume_ratio"`
}

// Mapper resolves platform symbols to MT5 symbols. It is safe for concurrent
// use.
type Mapper struct {
	path   string
	logger *zap.Logger

	mu       sync.RWMutex
	mappings map[string]Mapping
	reverse  map[string]string
	// Unrelated keys found in the config file, preserved across saves.
	extra map[string]json.RawMessage
}

// New creates a Mapper backed by the given config file and loads it. A
// missing file is not an error; the mapper starts empty. An empty path keeps
// the mapper purely in memory.
func New(path string, logger *zap.Logger) (*Mapper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Mapper{
		path:     path,
		logger:   logger,
		mappings: make(map[string]Mapping),
		reverse:  make(map[string]string),
		extra:    make(map[string]json.RawMessage),
	}

	if path == "" {
		return m, nil
	}

	if err := m.load(); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Mapper) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			m.logger.Warn("mapping file missing, starting empty", zap.String("path", m.path))
			return nil
		}
		return fmt.Errorf("symbolmap: read %s: %w", m.path, err)
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("symbolmap: parse %s: %w", m.path, err)
	}

	for key, raw := range root {
		if key != configKey {
			m.extra[key] = raw
		}
	}

	if raw, ok := root[configKey]; ok {
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			return fmt.Errorf("symbolmap: parse %s: %w", m.path, err)
		}
		for external, entry := range entries {
			mapping, err := parseEntry(external, entry)
			if err != nil {
				return fmt.Errorf("symbolmap: entry %q: %w", external, err)
			}
			m.mappings[external] = mapping
		}
	}

	// Reverse lookup keeps the first external symbol per MT5 symbol; sorted
	// iteration makes "first" deterministic.
	for _, external := range sortedKeys(m.mappings) {
		mt5 := m.mappings[external].Symbol
		if _, ok := m.reverse[mt5]; !ok {
			m.reverse[mt5] = external
		}
	}

	m.logger.Info("symbol mappings loaded",
		zap.String("path", m.path),
		zap.Int("count", len(m.mappings)),
	)

	return nil
}

// parseEntry accepts both entry formats: a bare string (legacy, ratio 1.0)
// and an object with symbol and volume_ratio.
func parseEntry(external string, raw json.RawMessage) (Mapping, error) {
	var legacy string
	if err := json.Unmarshal(raw, &legacy); err == nil {
		return Mapping{Symbol: legacy, VolumeRatio: 1.0}, nil
	}

	var entry struct {
		Symbol      *string  `json:"symbol"`
		VolumeRatio *float64 `json:"volume_ratio"`
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Mapping{}, err
	}

	mapping := Mapping{Symbol: external, VolumeRatio: 1.0}
	if entry.Symbol != nil {
		mapping.Symbol = *entry.Symbol
	}
	if entry.VolumeRatio != nil {
		mapping.VolumeRatio = *entry.VolumeRatio
	}
	return mapping, nil
}

// Resolve maps a platform symbol to its MT5 symbol. Exact matches win; when
// none exists, a configured key contained in the input matches instead, so
// decorated names like "BTCUSDT.P" still resolve. Unmapped symbols pass
// through unchanged.
func (m *Mapper) Resolve(external string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if mapping, ok := m.match(external); ok {
		m.logger.Debug("symbol mapped",
			zap.String("from", external),
			zap.String("to", mapping.Symbol),
		)
		return mapping.Symbol
	}

	return external
}

// VolumeRatio returns the lot-size ratio for a platform symbol, using the
// same lookup rules as Resolve. Unmapped symbols return 1.0.
func (m *Mapper) VolumeRatio(external string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if mapping, ok := m.match(external); ok {
		return mapping.VolumeRatio
	}

	return 1.0
}

// MapVolume scales a platform volume by the symbol's configured ratio.
func (m *Mapper) MapVolume(external string, volume float64) float64 {
	return volume * m.VolumeRatio(external)
}

// ReverseResolve maps an MT5 symbol back to a platform symbol. When several
// platform symbols share one MT5 symbol, the first configured wins. Unmapped
// symbols pass through unchanged.
func (m *Mapper) ReverseResolve(mt5 string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if external, ok := m.reverse[mt5]; ok {
		return external
	}
	return mt5
}

// match must be called with the lock held.
func (m *Mapper) match(external string) (Mapping, bool) {
	if mapping, ok := m.mappings[external]; ok {
		return mapping, true
	}

	// Containment match: the longest configured key contained in the input
	// wins; ties break lexicographically so resolution is stable.
	best := ""
	for key := range m.mappings {
		if !strings.Contains(external, key) {
			continue
		}
		if len(key) > len(best) || (len(key) == len(best) && key < best) {
			best = key
		}
	}
	if best == "" {
		return Mapping{}, false
	}
	return m.mappings[best], true
}

// Add registers a mapping and persists it when the mapper is file-backed.
// An existing entry for the same platform symbol is replaced.
func (m *Mapper) Add(external, mt5 string, volumeRatio float64) error {
	if external == "" || mt5 == "" {
		return ErrEmptySymbol
	}
	if volumeRatio == 0 {
		volumeRatio = 1.0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.mappings[external] = Mapping{Symbol: mt5, VolumeRatio: volumeRatio}
	m.reverse[mt5] = external

	m.logger.Info("symbol mapping added",
		zap.String("external", external),
		zap.String("mt5", mt5),
		zap.Float64("volume_ratio", volumeRatio),
	)

	return m.saveLocked()
}

// Remove deletes a mapping and persists the change. Removing an unknown
// symbol returns ErrNotFound.
func (m *Mapper) Remove(external string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mapping, ok := m.mappings[external]
	if !ok {
		return ErrNotFound
	}

	delete(m.mappings, external)
	if m.reverse[mapping.Symbol] == external {
		delete(m.reverse, mapping.Symbol)
	}

	m.logger.Info("symbol mapping removed", zap.String("external", external))

	return m.saveLocked()
}

// All returns a copy of every mapping keyed by platform symbol.
func (m *Mapper) All() map[string]Mapping {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Mapping, len(m.mappings))
	for k, v := range m.mappings {
		out[k] = v
	}
	return out
}

// Clear removes every mapping and persists the empty table.
func (m *Mapper) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.mappings = make(map[string]Mapping)
	m.reverse = make(map[string]string)

	m.logger.Info("symbol mappings cleared")

	return m.saveLocked()
}

// saveLocked writes the mapping table back to the config file, leaving
// unrelated keys in the file untouched. Must be called with the lock held.
func (m *Mapper) saveLocked() error {
	if m.path == "" {
		return nil
	}

	root := make(map[string]any, len(m.extra)+1)
	for key, raw := range m.extra {
		root[key] = raw
	}
	root[configKey] = m.mappings

	data, err := json.MarshalIndent(root, "", "    ")
	if err != nil {
		return fmt.Errorf("symbolmap: marshal: %w", err)
	}

	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return fmt.Errorf("symbolmap: write %s: %w", m.path, err)
	}

	m.logger.Debug("symbol mappings saved",
		zap.String("path", m.path),
		zap.Int("count", len(m.mappings)),
	)

	return nil
}

func sortedKeys(m map[string]Mapping) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
