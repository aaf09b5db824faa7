package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"partyspace/internal/app/middleware"
)

type IdempotencyStore struct {
	col *mongo.Collection
}

// NewIdempotencyStore prepares the collection; records expire ttl after creation.
func NewIdempotencyStore(ctx context.Context, db *mongo.Database, ttl time.Duration) (*IdempotencyStore, error) {
	col := db.Collection("app_idempotency")
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	_, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "created_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(ttl.Seconds())),
	})
	if err != nil {
		return nil, err
	}
	return &IdempotencyStore{col: col}, nil
}

// Claim inserts a pending document with $setOnInsert so only one caller creates
// it. A pending document past its lease is taken over with a compare and set on
// its timestamp.
func (s *IdempotencyStore) Claim(ctx context.Context, key string, now time.Time, lease time.Duration) (middleware.IdempotencyRecord, bool, error) {
	now = now.UTC().Truncate(time.Millisecond)
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$setOnInsert": bson.M{"pending": true, "occurred_at": now, "created_at": now}},
		options.Update().SetUpsert(true),
	)
	switch {
	case err == nil && res.UpsertedCount == 1:
		return middleware.IdempotencyRecord{Key: key, Pending: true, OccurredAt: now}, true, nil
	case err != nil && !mongo.IsDuplicateKeyError(err):
		return middleware.IdempotencyRecord{}, false, err
	}

	var doc idempotencyDocument
	if err := s.col.FindOne(ctx, bson.M{"_id": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Released or expired between the two calls; report it as still busy.
			return middleware.IdempotencyRecord{Key: key, Pending: true, OccurredAt: now}, false, nil
		}
		return middleware.IdempotencyRecord{}, false, err
	}
	rec := doc.toRecord()
	if !rec.Abandoned(now, lease) {
		return rec, false, nil
	}
	res, err = s.col.UpdateOne(ctx,
		bson.M{"_id": key, "pending": true, "occurred_at": doc.OccurredAt},
		bson.M{"$set": bson.M{"occurred_at": now, "created_at": now}},
	)
	if err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	if res.ModifiedCount == 0 {
		return rec, false, nil
	}
	return middleware.IdempotencyRecord{Key: key, Pending: true, OccurredAt: now}, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	doc := idempotencyDocument{
		Key:          rec.Key,
		Payload:      rec.Payload,
		ErrorKind:    rec.ErrorKind,
		ErrorMessage: rec.ErrorMessage,
		OccurredAt:   rec.OccurredAt,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.col.UpdateByID(ctx, doc.Key, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	return err
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"_id": key, "pending": true})
	return err
}

type idempotencyDocument struct {
	Key          string    `bson:"_id"`
	Pending      bool      `bson:"pending"`
	Payload      []byte    `bson:"payload"`
	ErrorKind    string    `bson:"error_kind,omitempty"`
	ErrorMessage string    `bson:"error_message,omitempty"`
	OccurredAt   time.Time `bson:"occurred_at"`
	CreatedAt    time.Time `bson:"created_at"`
}

func (d idempotencyDocument) toRecord() middleware.IdempotencyRecord {
	return middleware.IdempotencyRecord{
		Key:          d.Key,
		Pending:      d.Pending,
		Payload:      d.Payload,
		ErrorKind:    d.ErrorKind,
		ErrorMessage: d.ErrorMessage,
		OccurredAt:   d.OccurredAt,
	}
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
