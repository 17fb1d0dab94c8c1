package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

// Purge deletes verified records and expired records older than the
// configured retention. It is a no-op when no retention is set.
func (s *Usecase) Purge(ctx context.Context) (int64, error) {
	ctx, span := s.startSpan(ctx, "Purge")
	defer span.End()

	retention := s.cfg.GetHour("modules.otp.purge.retention_hours")
	if retention <= 0 {
		return 0, nil
	}

	cutoff := s.clock.Now().Add(-retention)

	deleted, err := s.repoDB.PurgeOTP(ctx, cutoff, cutoff)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo purge otp", "cutoff", cutoff, "error", err)
		return 0, goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "otp records purged", "deleted", deleted, "cutoff", cutoff)
	return deleted, nil
}
