package router

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

// OTP requests carry an email and a code; 8KB is generous.
const maxBodyBytes = 8 << 10

// Request is what endpoint handlers receive.
type Request struct {
	*http.Request
}

// ClientAddr is the caller address after proxy headers were applied.
func (r *Request) ClientAddr() string {
	return clientAddr(r.Request)
}

// DecodeBody decodes one JSON object into dst. Fields dst does not declare are
// ignored so clients may send extra keys. A malformed body or a second
// document is reported as a 400.
func (r *Request) DecodeBody(dst any) error {
	if r == nil || r.Body == nil {
		return goerror.NewInvalidFormat()
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			return goerror.NewInvalidFormat("Content-Type must be application/json")
		}
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if dec.Decode(dst) != nil {
		return goerror.NewInvalidFormat()
	}
	if !errors.Is(dec.Decode(new(json.RawMessage)), io.EOF) {
		return goerror.NewInvalidFormat()
	}
	return nil
}
