package email

import (
	"context"
	"errors"
	"net/textproto"
	"testing"

	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
)

type stubClient struct {
	err  error
	msgs []mail.Message
}

func (s *stubClient) Send(_ context.Context, msg mail.Message) error {
	s.msgs = append(s.msgs, msg)
	return s.err
}

func (s *stubClient) Close() error { return nil }

func TestSend(t *testing.T) {
	msg := mail.Message{To: []string{"admin@example.com"}, Subject: "OTP Generated", HTMLBody: "<pre>{}</pre>"}

	t.Run("delivers", func(t *testing.T) {
		client := &stubClient{}
		if err := New(client, instrument.NewNoop()).Send(context.Background(), msg); err != nil {
			t.Fatalf("Send: %v", err)
		}
		if len(client.msgs) != 1 || client.msgs[0].Subject != "OTP Generated" {
			t.Fatalf("msgs = %+v", client.msgs)
		}
	})

	t.Run("permanent failure is marked", func(t *testing.T) {
		client := &stubClient{err: &textproto.Error{Code: 550, Msg: "mailbox unavailable"}}
		err := New(client, instrument.NewNoop()).Send(context.Background(), msg)
		if !errors.Is(err, mail.ErrPermanent) {
			t.Fatalf("err = %v, want ErrPermanent", err)
		}
	})

	t.Run("transient failure is passed through", func(t *testing.T) {
		client := &stubClient{err: &textproto.Error{Code: 421, Msg: "busy"}}
		err := New(client, instrument.NewNoop()).Send(context.Background(), msg)
		if err == nil || errors.Is(err, mail.ErrPermanent) {
			t.Fatalf("err = %v", err)
		}
	})
}
