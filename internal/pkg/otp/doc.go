// Package otp generates one-time passcodes.
//
// Codes are decimal strings of a fixed length whose first digit is never
// zero, drawn from crypto/rand so they cannot be predicted from earlier
// codes.
package otp
