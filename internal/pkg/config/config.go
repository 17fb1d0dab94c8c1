package config

import (
	"io"
	"time"
)

// TimeConfig reads integer values scaled to a time unit.
//
// A missing or non-numeric key yields 0, which callers treat as "disabled"
// or "use the default".
type TimeConfig interface {
	// GetSecond returns the value for key as seconds.
	GetSecond(key string) time.Duration
	// GetMinute returns the value for key as minutes.
	GetMinute(key string) time.Duration
	// GetHour returns the value for key as hours.
	GetHour(key string) time.Duration
}

// NumberConfig reads numeric values.
type NumberConfig interface {
	GetInt(key string) int
	GetInt32(key string) int32
	GetInt64(key string) int64
	GetUint16(key string) uint16
	GetFloat64(key string) float64
}

// Config is the read-only view of runtime configuration shared by every
// module. Implementations must be safe for concurrent use because values can
// be reloaded while requests are served.
type Config interface {
	io.Closer
	TimeConfig
	NumberConfig

	// GetBool returns the value for key as bool.
	GetBool(key string) bool

	// GetString returns the value for key as string.
	GetString(key string) string

	// GetArray returns the value for key as a list of non-empty, trimmed strings.
	// Both YAML sequences and comma separated strings are accepted, so a list
	// can be overridden from a single environment variable.
	GetArray(key string) []string
}
