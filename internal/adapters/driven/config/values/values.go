// Package values holds the dotted-key settings map shared by the config
// stores, with the type coercions TOML and JSON decoding make necessary.
package values

import (
	"math"
	"slices"
	"sync"
)

// Map is a concurrency-safe map of dotted keys to decoded values.
type Map struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{data: make(map[string]any)}
}

// Get returns the raw value for key.
func (m *Map) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

// GetString returns key as a string.
func (m *Map) GetString(key string) string {
	v, _ := m.Get(key)
	s, _ := v.(string)
	return s
}

// GetInt returns key as an int.
func (m *Map) GetInt(key string) int {
	v, _ := m.Get(key)
	n, _ := Int(v)
	return n
}

// GetFloat returns key as a float64.
func (m *Map) GetFloat(key string) float64 {
	v, _ := m.Get(key)
	f, _ := Float(v)
	return f
}

// GetBool returns key as a bool.
func (m *Map) GetBool(key string) bool {
	v, _ := m.Get(key)
	b, _ := v.(bool)
	return b
}

// GetStringSlice returns key as a string slice, skipping non-string items.
func (m *Map) GetStringSlice(key string) []string {
	v, _ := m.Get(key)
	return Strings(v)
}

// Keys returns the stored keys, sorted.
func (m *Map) Keys() []string {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// Set stores value under key.
func (m *Map) Set(key string, value any) error {
	return m.Update(func(data map[string]any) error {
		data[key] = value
		return nil
	})
}

// Update runs fn on a copy of the data under the write lock and keeps the
// copy only if fn succeeds.
func (m *Map) Update(fn func(data map[string]any) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(map[string]any, len(m.data)+1)
	for k, v := range m.data {
		next[k] = v
	}
	if err := fn(next); err != nil {
		return err
	}
	m.data = next
	return nil
}

// Replace swaps in data wholesale.
func (m *Map) Replace(data map[string]any) {
	if data == nil {
		data = make(map[string]any)
	}
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
}

// Snapshot returns a copy of the data.
func (m *Map) Snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

// Int converts decoded integers, and floats with no fractional part.
func Int(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int(n), true
		}
	}
	return 0, false
}

// Float converts any decoded number.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

// Strings converts []string or the []any a decoder produces for arrays.
func Strings(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
