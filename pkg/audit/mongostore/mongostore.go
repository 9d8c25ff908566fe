// Package mongostore persists tenant audit events in a MongoDB collection.
package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/casekit/pkg/audit"
)

// DefaultCollection is the collection name used by cmd wiring.
const DefaultCollection = "tenant_audit"

// Storage implements audit.Storage with unordered bulk inserts.
type Storage struct {
	coll *mongo.Collection
}

// New creates a storage writing to coll.
func New(coll *mongo.Collection) *Storage {
	if coll == nil {
		panic("mongostore: collection cannot be nil")
	}
	return &Storage{coll: coll}
}

// EnsureIndexes creates the indexes used by audit queries: newest first,
// per organization, per user, and bypassed access.
func (s *Storage) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "organization_code", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{
			Keys:    bson.D{{Key: "bypass", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetSparse(true),
		},
	})
	if err != nil {
		return errors.Join(audit.ErrStorageNotAvailable, err)
	}
	return nil
}

// StoreBatch inserts events. Events already stored by an earlier attempt
// (duplicate _id) are not an error.
func (s *Storage) StoreBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}

	docs := make([]any, len(events))
	for i := range events {
		docs[i] = events[i]
	}

	_, err := s.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil || onlyDuplicates(err) {
		return nil
	}
	return errors.Join(audit.ErrStorageNotAvailable, err)
}

func onlyDuplicates(err error) bool {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || bwe.WriteConcernError != nil || len(bwe.WriteErrors) == 0 {
		return false
	}
	for _, we := range bwe.WriteErrors {
		if we.Code != 11000 {
			return false
		}
	}
	return true
}
