// Package uid generates identifiers: snowflake numbers for records and
// UUIDv7 strings for correlation ids.
package uid

// NumberID generates unique, roughly time-ordered int64 ids.
type NumberID interface {
	Generate() int64
}

// StringID generates unique string ids.
type StringID interface {
	Generate() string
}
