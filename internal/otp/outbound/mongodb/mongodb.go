package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/shandysiswandi/otpgate/internal/otp/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const collectionName = "otps"

// document keeps the field names of records written by earlier deployments.
// Those used ObjectId keys; ID holds either that or the snowflake id this
// service writes, and NumericID is the alias given to an ObjectId record.
type document struct {
	ID         any        `bson:"_id"`
	NumericID  int64      `bson:"numericId,omitempty"`
	Email      string     `bson:"email"`
	OTP        string     `bson:"otp"`
	IsVerified bool       `bson:"isVerified"`
	IPAddress  string     `bson:"ipAddress"`
	ExpiresAt  *time.Time `bson:"expiresAt,omitempty"`
	CreatedAt  time.Time  `bson:"createdAt"`
	UpdatedAt  time.Time  `bson:"updatedAt"`
}

// recordID reports the numeric id of d, or false for an ObjectId record that
// has no alias yet.
func (d document) recordID() (int64, bool) {
	switch id := d.ID.(type) {
	case int64:
		return id, true
	case int32:
		return int64(id), true
	}
	return d.NumericID, d.NumericID != 0
}

func (d document) toEntity(id int64) *entity.OTP {
	rec := &entity.OTP{
		ID:            id,
		Email:         d.Email,
		Code:          d.OTP,
		Verified:      d.IsVerified,
		OriginAddress: d.IPAddress,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
	if d.ExpiresAt != nil {
		t := d.ExpiresAt.UTC()
		rec.ExpiresAt = &t
	}
	return rec
}

type Mongo struct {
	coll *mongo.Collection
	ids  uid.NumberID
	ins  instrument.Instrumentation
	now  func() time.Time
}

// NewMongo uses ids only to alias records keyed by ObjectId.
func NewMongo(db *mongo.Database, ids uid.NumberID, ins instrument.Instrumentation) *Mongo {
	return &Mongo{
		coll: db.Collection(collectionName),
		ids:  ids,
		ins:  ins,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the lookup index used by verification.
func (s *Mongo) EnsureIndexes(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "EnsureIndexes")
	defer func() { s.endSpan(span, err) }()

	_, err = s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}, {Key: "otp", Value: 1}, {Key: "isVerified", Value: 1}}},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "numericId", Value: 1}}, Options: options.Index().SetSparse(true).SetUnique(true)},
	})
	return err
}

func (s *Mongo) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return goerror.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return goerror.ErrConflict
	}
	return err
}

func (s *Mongo) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("otp.outbound.mongodb").Start(ctx, name)
}

func (s *Mongo) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func liveFilter(now time.Time) bson.A {
	return bson.A{
		bson.M{"expiresAt": nil},
		bson.M{"expiresAt": bson.M{"$gt": now}},
	}
}

func (s *Mongo) CreateOTP(ctx context.Context, in entity.OTP) (err error) {
	ctx, span := s.startSpan(ctx, "CreateOTP")
	defer func() { s.endSpan(span, err) }()

	_, err = s.coll.InsertOne(ctx, document{
		ID:         in.ID,
		Email:      in.Email,
		OTP:        in.Code,
		IsVerified: in.Verified,
		IPAddress:  in.OriginAddress,
		ExpiresAt:  in.ExpiresAt,
		CreatedAt:  in.CreatedAt,
		UpdatedAt:  in.UpdatedAt,
	})
	err = s.mapError(err)
	return err
}

func (s *Mongo) GetUnverifiedOTP(ctx context.Context, email, code string, now time.Time) (_ *entity.OTP, err error) {
	ctx, span := s.startSpan(ctx, "GetUnverifiedOTP")
	defer func() { s.endSpan(span, err) }()

	var doc document
	err = s.coll.FindOne(ctx, bson.M{
		"email":      email,
		"otp":        code,
		"isVerified": false,
		"$or":        liveFilter(now),
	}).Decode(&doc)
	if err != nil {
		return nil, s.mapError(err)
	}

	id, ok := doc.recordID()
	if !ok {
		if id, err = s.alias(ctx, doc.ID); err != nil {
			return nil, s.mapError(err)
		}
	}
	return doc.toEntity(id), nil
}

// alias stamps an ObjectId record with a numeric id. Concurrent callers
// agree on whichever id was stored first.
func (s *Mongo) alias(ctx context.Context, key any) (int64, error) {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": key, "numericId": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"numericId": s.ids.Generate()}},
	)
	if err != nil {
		return 0, err
	}

	var stamped struct {
		NumericID int64 `bson:"numericId"`
	}
	err = s.coll.FindOne(ctx, bson.M{"_id": key},
		options.FindOne().SetProjection(bson.M{"numericId": 1})).Decode(&stamped)
	return stamped.NumericID, err
}

func (s *Mongo) MarkOTPVerified(ctx context.Context, id int64) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "MarkOTPVerified")
	defer func() { s.endSpan(span, err) }()

	res, err := s.coll.UpdateOne(ctx,
		bson.M{"$or": bson.A{bson.M{"_id": id}, bson.M{"numericId": id}}, "isVerified": false},
		bson.M{"$set": bson.M{"isVerified": true, "updatedAt": s.now()}},
	)
	if err != nil {
		return false, s.mapError(err)
	}

	return res.ModifiedCount == 1, nil
}

func (s *Mongo) CountOutstandingOTP(ctx context.Context, email string, now time.Time) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "CountOutstandingOTP")
	defer func() { s.endSpan(span, err) }()

	n, err := s.coll.CountDocuments(ctx, bson.M{
		"email":      email,
		"isVerified": false,
		"$or":        liveFilter(now),
	})
	if err != nil {
		return 0, s.mapError(err)
	}

	return n, nil
}

func (s *Mongo) PurgeOTP(ctx context.Context, verifiedBefore, expiredBefore time.Time) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "PurgeOTP")
	defer func() { s.endSpan(span, err) }()

	res, err := s.coll.DeleteMany(ctx, bson.M{"$or": bson.A{
		bson.M{"isVerified": true, "updatedAt": bson.M{"$lt": verifiedBefore}},
		bson.M{"expiresAt": bson.M{"$ne": nil, "$lt": expiredBefore}},
	}})
	if err != nil {
		return 0, s.mapError(err)
	}

	return res.DeletedCount, nil
}
