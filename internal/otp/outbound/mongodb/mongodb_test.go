package mongodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/testcontainers/testcontainers-go"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func newTestMongo(t *testing.T) *Mongo {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping mongodb integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := tcmongo.Run(ctx, "mongo:7")
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start mongodb: %v", err)
	}

	uri, err := ctr.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { client.Disconnect(context.Background()) })

	node, err := uid.NewSnowflake(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	store := NewMongo(client.Database("otpgate"), node, instrument.NewNoop())
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("indexes: %v", err)
	}
	return store
}

func TestMongoIntegration(t *testing.T) {
	store := newTestMongo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Minute)

	for _, rec := range []entity.OTP{
		{ID: 1, Email: "a@x.com", Code: "483920", OriginAddress: "1.2.3.4", CreatedAt: now, UpdatedAt: now},
		{ID: 2, Email: "a@x.com", Code: "222222", ExpiresAt: &expired, CreatedAt: now, UpdatedAt: now},
	} {
		if err := store.CreateOTP(ctx, rec); err != nil {
			t.Fatalf("create %d: %v", rec.ID, err)
		}
	}

	if err := store.CreateOTP(ctx, entity.OTP{ID: 1}); !errors.Is(err, goerror.ErrConflict) {
		t.Fatalf("duplicate err = %v", err)
	}

	got, err := store.GetUnverifiedOTP(ctx, "a@x.com", "483920", now)
	if err != nil || got.ID != 1 || got.OriginAddress != "1.2.3.4" {
		t.Fatalf("get = %+v, err = %v", got, err)
	}
	if _, err := store.GetUnverifiedOTP(ctx, "a@x.com", "222222", now); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("expired err = %v", err)
	}

	if n, err := store.CountOutstandingOTP(ctx, "a@x.com", now); err != nil || n != 1 {
		t.Fatalf("count = %d, err = %v", n, err)
	}

	ok, err := store.MarkOTPVerified(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("first mark = %v, err = %v", ok, err)
	}
	ok, err = store.MarkOTPVerified(ctx, 1)
	if err != nil || ok {
		t.Fatalf("second mark = %v, err = %v", ok, err)
	}
	if _, err := store.GetUnverifiedOTP(ctx, "a@x.com", "483920", now); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("replay err = %v", err)
	}

	n, err := store.PurgeOTP(ctx, time.Now().Add(time.Hour), now)
	if err != nil || n != 2 {
		t.Fatalf("purge = %d, err = %v", n, err)
	}
}

func TestMongoVerifiesObjectIDRecords(t *testing.T) {
	store := newTestMongo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := store.coll.InsertOne(ctx, bson.M{
		"_id":        primitive.NewObjectID(),
		"email":      "old@x.com",
		"otp":        "731904",
		"isVerified": false,
		"ipAddress":  "5.6.7.8",
		"createdAt":  now,
		"updatedAt":  now,
	})
	if err != nil {
		t.Fatalf("insert legacy: %v", err)
	}

	first, err := store.GetUnverifiedOTP(ctx, "old@x.com", "731904", now)
	if err != nil || first.ID == 0 || first.OriginAddress != "5.6.7.8" {
		t.Fatalf("get = %+v, err = %v", first, err)
	}
	again, err := store.GetUnverifiedOTP(ctx, "old@x.com", "731904", now)
	if err != nil || again.ID != first.ID {
		t.Fatalf("alias changed between reads: %+v, err = %v", again, err)
	}

	ok, err := store.MarkOTPVerified(ctx, first.ID)
	if err != nil || !ok {
		t.Fatalf("mark = %v, err = %v", ok, err)
	}
	if _, err := store.GetUnverifiedOTP(ctx, "old@x.com", "731904", now); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("replay err = %v", err)
	}
}
