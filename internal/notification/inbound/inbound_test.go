package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/notification/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
)

type stubUC struct {
	mu       sync.Mutex
	audits   []event.OTPAuditMessage
	cIDs     []string
	auditErr error
	testErr  error
	got      chan struct{}
}

func (s *stubUC) ConsumeOTPAudit(ctx context.Context, msg event.OTPAuditMessage) error {
	s.mu.Lock()
	s.audits = append(s.audits, msg)
	s.cIDs = append(s.cIDs, instrument.GetCorrelationID(ctx))
	s.mu.Unlock()

	select {
	case s.got <- struct{}{}:
	default:
	}
	return s.auditErr
}

func (s *stubUC) SendAdminAudit(context.Context, usecase.AdminAuditInput) error { return nil }

func (s *stubUC) TestEmail(context.Context) error { return s.testErr }

func TestTestEmailEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   map[string]any
	}{
		{name: "success", wantStatus: http.StatusOK, wantBody: map[string]any{"success": true}},
		{
			name:       "failure",
			err:        goerror.NewServer(errors.New("dial tcp: refused"), "Email failed"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]any{"error": "Email failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := router.NewRouter(router.Config{})
			RegisterHTTPEndpoint(r, &stubUC{testErr: tt.err})

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test-email", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			for k, v := range tt.wantBody {
				if body[k] != v {
					t.Fatalf("body[%q] = %v, want %v", k, body[k], v)
				}
			}
		})
	}
}

type fakeMessage struct {
	messaging.Message
	body    []byte
	headers map[string]string
}

func (m fakeMessage) Body() []byte             { return m.body }
func (m fakeMessage) Header(key string) string { return m.headers[key] }
func (m fakeMessage) Attempts() int            { return 1 }

func TestMQHandlerOTPAudit(t *testing.T) {
	body, _ := json.Marshal(event.OTPAuditMessage{
		Subject: "OTP VERIFIED",
		Payload: map[string]any{"email": "a@x.com"},
	})

	t.Run("propagates correlation id", func(t *testing.T) {
		uc := &stubUC{}
		h := &MQHandler{uc: uc, uuid: uid.NewUUID(), ins: instrument.NewNoop()}

		err := h.OTPAudit(context.Background(), fakeMessage{body: body, headers: map[string]string{event.HeaderCorrelationID: "req-1"}})
		if err != nil {
			t.Fatalf("OTPAudit: %v", err)
		}
		if uc.cIDs[0] != "req-1" || uc.audits[0].Subject != "OTP VERIFIED" || uc.audits[0].Payload["email"] != "a@x.com" {
			t.Fatalf("audits = %+v cIDs = %v", uc.audits, uc.cIDs)
		}
	})

	t.Run("generates correlation id when missing", func(t *testing.T) {
		uc := &stubUC{}
		h := &MQHandler{uc: uc, uuid: uid.NewUUID(), ins: instrument.NewNoop()}

		if err := h.OTPAudit(context.Background(), fakeMessage{body: body}); err != nil {
			t.Fatalf("OTPAudit: %v", err)
		}
		if uc.cIDs[0] == "" {
			t.Fatal("expected generated correlation id")
		}
	})

	t.Run("malformed body is dropped", func(t *testing.T) {
		uc := &stubUC{}
		h := &MQHandler{uc: uc, uuid: uid.NewUUID(), ins: instrument.NewNoop()}

		if err := h.OTPAudit(context.Background(), fakeMessage{body: []byte("{")}); err != nil {
			t.Fatalf("OTPAudit: %v", err)
		}
		if len(uc.audits) != 0 {
			t.Fatal("malformed body must not reach the usecase")
		}
	})

	t.Run("usecase error requests redelivery", func(t *testing.T) {
		uc := &stubUC{auditErr: errors.New("smtp down")}
		h := &MQHandler{uc: uc, uuid: uid.NewUUID(), ins: instrument.NewNoop()}

		if err := h.OTPAudit(context.Background(), fakeMessage{body: body}); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestRegisterMQConsumer(t *testing.T) {
	cfg, err := config.NewViperFromBytes("yaml", []byte("modules:\n  notification:\n    consumer_concurrency: 1\n"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	broker := messaging.NewMemory()
	routine := goroutine.NewManager(4)
	uc := &stubUC{got: make(chan struct{}, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	RegisterMQConsumer(ctx, cfg, routine, broker, uid.NewUUID(), uc, instrument.NewNoop())
	t.Cleanup(func() {
		cancel()
		broker.Close()
		routine.Wait()
	})

	body, _ := json.Marshal(event.OTPAuditMessage{Subject: "OTP Generated"})

	// The consumer registers asynchronously; publish until its group sees one.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		if _, err := broker.Publish(ctx, event.OTPAuditDestination, messaging.OutgoingMessage{Body: body}); err != nil {
			t.Fatalf("publish: %v", err)
		}
		select {
		case <-uc.got:
			uc.mu.Lock()
			defer uc.mu.Unlock()
			if uc.audits[0].Subject != "OTP Generated" {
				t.Fatalf("audits = %+v", uc.audits)
			}
			return
		case <-deadline:
			t.Fatal("consumer did not receive the audit")
		case <-tick.C:
		}
	}
}
