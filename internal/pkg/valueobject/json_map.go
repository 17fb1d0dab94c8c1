package valueobject

import (
	"bytes"
	"encoding/json"
	"maps"
	"strings"
	"time"
)

// JSONMap stores arbitrary JSON object data.
// @swaggertype object
type JSONMap map[string]any

// Clone returns a shallow copy so the receiver can be handed to another goroutine.
func (j JSONMap) Clone() JSONMap {
	if j == nil {
		return JSONMap{}
	}
	return maps.Clone(j)
}

// Set adds or updates a key-value pair.
func (j JSONMap) Set(key string, value any) {
	j[key] = value
}

// SetTime stores t as RFC 3339 in UTC, or null when t is nil.
func (j JSONMap) SetTime(key string, t *time.Time) {
	if t == nil {
		j[key] = nil
		return
	}
	j[key] = t.UTC().Format(time.RFC3339)
}

// GetString safely returns a string value. Returns "" if missing or wrong type.
func (j JSONMap) GetString(key string) string {
	if v, ok := j[key].(string); ok {
		return v
	}
	return ""
}

// GetBool safely returns a boolean. Returns false if missing or wrong type.
func (j JSONMap) GetBool(key string) bool {
	if v, ok := j[key].(bool); ok {
		return v
	}
	return false
}

// Indent renders the map as two-space indented JSON with sorted keys. HTML
// characters are kept literal; escaping is left to whatever embeds the text.
func (j JSONMap) Indent() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(j); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
