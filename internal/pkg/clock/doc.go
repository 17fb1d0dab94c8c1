// Package clock provides a tiny time abstraction.
//
// Code that stamps or compares record times depends on Clocker instead of
// calling time.Now() directly, so expiry and retention can be tested with a
// Manual clock.
package clock
