// Package ratelimit throttles callers by key using fixed windows.
//
// It wraps github.com/ulule/limiter so both the per-address HTTP middleware
// and the per-email issuance policy share one store. Redis backs the store in
// multi-instance deployments; the memory store is for single nodes and tests.
package ratelimit
