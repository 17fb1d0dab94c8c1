package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shandysiswandi/otpgate/internal/otp/entity"
)

const queryCreateOTP = `
INSERT INTO otp_records (id, email, code, verified, origin_address, expires_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func (s *DB) CreateOTP(ctx context.Context, in entity.OTP) (err error) {
	ctx, span := s.trace(ctx, "CreateOTP")
	defer func() { finish(span, err) }()

	expiresAt := pgtype.Timestamptz{}
	if in.ExpiresAt != nil {
		expiresAt = pgtype.Timestamptz{Valid: true, Time: *in.ExpiresAt}
	}

	_, err = s.conn.Exec(ctx, queryCreateOTP,
		in.ID,
		in.Email,
		in.Code,
		in.Verified,
		in.OriginAddress,
		expiresAt,
		pgtype.Timestamptz{Valid: true, Time: in.CreatedAt},
		pgtype.Timestamptz{Valid: true, Time: in.UpdatedAt},
	)
	return translate(err)
}
