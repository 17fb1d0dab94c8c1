// Package messaging provides a broker-agnostic API for publishing and
// consuming messages.
//
// Business code depends on Publisher and Consumer; the broker (NATS, NSQ or
// the in-process memory driver) is picked by NewFromDriver at wiring time.
// Headers travel natively on NATS and inside a small JSON envelope on NSQ,
// which has no header frame.
package messaging
