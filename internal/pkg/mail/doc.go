// Package mail defines the contract for sending email messages and an SMTP
// implementation of it.
//
// Use cases build a Message and hand it to Mail; whether it leaves over SMTP
// or a provider API is decided at wiring time.
package mail
