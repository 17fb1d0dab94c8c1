package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shandysiswandi/otpgate/internal/otp/entity"
)

const queryGetUnverifiedOTP = `
SELECT id, email, code, verified, origin_address, expires_at, created_at, updated_at
FROM otp_records
WHERE email = $1 AND code = $2 AND verified = FALSE
  AND (expires_at IS NULL OR expires_at > $3)
ORDER BY id
LIMIT 1`

const queryCountOutstandingOTP = `
SELECT count(*)
FROM otp_records
WHERE email = $1 AND verified = FALSE
  AND (expires_at IS NULL OR expires_at > $2)`

func (s *DB) GetUnverifiedOTP(ctx context.Context, email, code string, now time.Time) (_ *entity.OTP, err error) {
	ctx, span := s.trace(ctx, "GetUnverifiedOTP")
	defer func() { finish(span, err) }()

	var (
		rec       entity.OTP
		expiresAt pgtype.Timestamptz
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)

	err = s.conn.QueryRow(ctx, queryGetUnverifiedOTP, email, code, now).Scan(
		&rec.ID,
		&rec.Email,
		&rec.Code,
		&rec.Verified,
		&rec.OriginAddress,
		&expiresAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, translate(err)
	}

	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		rec.ExpiresAt = &t
	}
	rec.CreatedAt = createdAt.Time.UTC()
	rec.UpdatedAt = updatedAt.Time.UTC()

	return &rec, nil
}

func (s *DB) CountOutstandingOTP(ctx context.Context, email string, now time.Time) (_ int64, err error) {
	ctx, span := s.trace(ctx, "CountOutstandingOTP")
	defer func() { finish(span, err) }()

	var count int64
	if err = s.conn.QueryRow(ctx, queryCountOutstandingOTP, email, now).Scan(&count); err != nil {
		return 0, translate(err)
	}

	return count, nil
}
