package settings

import (
	"encoding/json"
	"errors"
)

// MaxEntries is the capacity of a settings map.
const MaxEntries = 5

// ErrFull is returned when inserting a new index into a map at capacity.
var ErrFull = errors.New("settings: map is full")

// Map is a bounded settings map. A nil Map is empty and read-only.
type Map map[Index]Value

// Get returns the value stored under idx.
func (m Map) Get(idx Index) (Value, bool) {
	v, ok := m[idx]
	return v, ok
}

// Put overwrites idx when present. A new index is inserted only while the map
// holds fewer than MaxEntries values.
func (m Map) Put(idx Index, v Value) error {
	if v.IsZero() {
		return ErrEmptyValue
	}
	if _, ok := m[idx]; !ok && len(m) >= MaxEntries {
		return ErrFull
	}
	m[idx] = v
	return nil
}

// Delete removes idx and reports whether it was present.
func (m Map) Delete(idx Index) bool {
	if _, ok := m[idx]; !ok {
		return false
	}
	delete(m, idx)
	return true
}

// Clone returns an independent copy of m. Values are immutable and shared.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MarshalJSON renders m as a JSON object. A nil map renders as {}.
func (m Map) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[string(k)] = v.JSON()
	}
	return json.Marshal(out)
}
