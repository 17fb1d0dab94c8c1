// Package validator checks request structs against their `validate` tags and
// reports failures keyed by JSON field name, so handlers can return them to
// the caller unchanged.
package validator
