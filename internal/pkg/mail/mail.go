package mail

import (
	"context"
	"errors"
	"io"
	"net/textproto"
)

// Message represents an email payload.
type Message struct {
	// From is an optional explicit sender address; the client default is used when empty.
	From string
	// FromName is an optional display name for the sender.
	FromName string
	// To lists required recipients.
	To []string
	// Cc lists carbon copy recipients.
	Cc []string
	// Bcc lists blind carbon copy recipients.
	Bcc []string
	// Subject is the email subject line.
	Subject string
	// TextBody is the plain-text body; preferred when HTMLBody is empty.
	TextBody string
	// HTMLBody is the optional HTML body.
	HTMLBody string
}

// Mail abstracts an email provider (SMTP, third-party API, etc).
type Mail interface {
	io.Closer
	// Send dispatches the given message using the underlying provider.
	Send(ctx context.Context, msg Message) error
}

// ErrPermanent marks a delivery failure that retrying cannot fix.
var ErrPermanent = errors.New("mail: permanent delivery failure")

// IsPermanent reports whether err is a 5xx SMTP reply or already marked
// with ErrPermanent. Network errors and 4xx replies are transient.
func IsPermanent(err error) bool {
	if errors.Is(err, ErrPermanent) {
		return true
	}

	var tpErr *textproto.Error
	return errors.As(err, &tpErr) && tpErr.Code >= 500
}
