package db

import (
	"context"
	"time"
)

const queryPurgeOTP = `
DELETE FROM otp_records
WHERE (verified = TRUE AND updated_at < $1)
   OR (expires_at IS NOT NULL AND expires_at < $2)`

func (s *DB) PurgeOTP(ctx context.Context, verifiedBefore, expiredBefore time.Time) (_ int64, err error) {
	ctx, span := s.trace(ctx, "PurgeOTP")
	defer func() { finish(span, err) }()

	tag, err := s.conn.Exec(ctx, queryPurgeOTP, verifiedBefore, expiredBefore)
	if err != nil {
		return 0, translate(err)
	}

	return tag.RowsAffected(), nil
}
