package db

import "context"

const queryMarkOTPVerified = `
UPDATE otp_records
SET verified = TRUE, updated_at = now()
WHERE id = $1 AND verified = FALSE`

// MarkOTPVerified flips verified only if it is still false. It reports false
// when another request got there first or the id does not exist.
func (s *DB) MarkOTPVerified(ctx context.Context, id int64) (_ bool, err error) {
	ctx, span := s.trace(ctx, "MarkOTPVerified")
	defer func() { finish(span, err) }()

	tag, err := s.conn.Exec(ctx, queryMarkOTPVerified, id)
	if err != nil {
		return false, translate(err)
	}

	return tag.RowsAffected() == 1, nil
}
