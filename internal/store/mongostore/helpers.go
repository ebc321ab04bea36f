package mongostore

import (
	"context"
	"errors"

	"github.com/rideshare-app/apiserver/internal/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// wrapError maps MongoDB errors onto the store's sentinel errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	return err
}

// objectID parses a hex identifier. Malformed identifiers cannot match any
// document, so they are reported as ErrNotFound.
func objectID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.ObjectID{}, store.ErrNotFound
	}
	return oid, nil
}

// newObjectID parses id when set and generates a fresh ObjectID otherwise.
func newObjectID(id string) (bson.ObjectID, error) {
	if id == "" {
		return bson.NewObjectID(), nil
	}
	return objectID(id)
}

func hexOrEmpty(oid bson.ObjectID) string {
	if oid.IsZero() {
		return ""
	}
	return oid.Hex()
}

func findOne[T any](ctx context.Context, col *mongo.Collection, filter bson.D) (T, error) {
	var result T
	if err := col.FindOne(ctx, filter).Decode(&result); err != nil {
		return result, wrapError(err)
	}
	return result, nil
}

func findMany[T any](ctx context.Context, col *mongo.Collection, filter bson.D, opts ...options.Lister[options.FindOptions]) ([]T, error) {
	cursor, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer cursor.Close(ctx)

	results := make([]T, 0)
	for cursor.Next(ctx) {
		var item T
		if err := cursor.Decode(&item); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// exists reports whether a document with the given _id exists.
func exists(ctx context.Context, col *mongo.Collection, oid bson.ObjectID) (bool, error) {
	n, err := col.CountDocuments(ctx, bson.D{{Key: "_id", Value: oid}}, options.Count().SetLimit(1))
	if err != nil {
		return false, wrapError(err)
	}
	return n > 0, nil
}
