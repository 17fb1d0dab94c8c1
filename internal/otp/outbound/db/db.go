// Package db stores OTP records in PostgreSQL through a pgx pool.
package db

import (
	"context"
	_ "embed"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

type DB struct {
	conn   *pgxpool.Pool
	tracer trace.Tracer
}

func NewDB(conn *pgxpool.Pool, ins instrument.Instrumentation) *DB {
	return &DB{conn: conn, tracer: ins.Tracer("otp.outbound.db")}
}

// Migrate creates the otp_records table and its indexes when missing.
func (s *DB) Migrate(ctx context.Context) (err error) {
	ctx, span := s.trace(ctx, "Migrate")
	defer func() { finish(span, err) }()

	_, err = s.conn.Exec(ctx, schema)
	return err
}

// translate turns pgx failures the usecase branches on into goerror
// sentinels. Anything else passes through untouched.
func translate(err error) error {
	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return goerror.ErrNotFound
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
		return goerror.ErrConflict
	default:
		return err
	}
}

func (s *DB) trace(ctx context.Context, op string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.collection.name", "otp_records"),
		),
	)
}

// finish leaves the span unmarked for not-found and conflict; both are
// outcomes the caller expects.
func finish(span trace.Span, err error) {
	defer span.End()
	if err == nil || errors.Is(err, goerror.ErrNotFound) || errors.Is(err, goerror.ErrConflict) {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
