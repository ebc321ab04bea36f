// Package mongostore implements the repositories on MongoDB.
//
// Collection and field names follow the documents written by the earlier
// mongoose-based service so existing data stays readable. Domain types are
// mapped to document structs holding ObjectIDs.
package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	ColUsers        = "users"
	ColRides        = "rides"
	ColRideRequests = "riderequests"
	ColRideRatings  = "rideratings"
)

// Store groups the MongoDB backed repositories over one database.
type Store struct {
	db *mongo.Database
}

// New returns a Store on db. Call EnsureIndexes before serving traffic.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{col: s.col(ColUsers)}
}

func (s *Store) Rides() *RideRepository {
	return &RideRepository{col: s.col(ColRides)}
}

func (s *Store) RideRequests() *RideRequestRepository {
	return &RideRequestRepository{col: s.col(ColRideRequests)}
}

func (s *Store) Ratings() *RatingRepository {
	return &RatingRepository{col: s.col(ColRideRatings)}
}

// EnsureIndexes creates the indexes the repositories rely on, including the
// unique indexes that enforce one user per mobile, one open request per
// ride and passenger, and one rating per ride, rater and target. Ride
// requests lacking the active flag are backfilled first; if legacy data
// already holds two open requests for one ride and passenger, index
// creation fails and reports the duplicate.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.RideRequests().backfillActive(ctx); err != nil {
		return fmt.Errorf("backfill %s active flag: %w", ColRideRequests, err)
	}

	type idx struct {
		col     string
		keys    bson.D
		unique  bool
		partial bson.D
	}

	indexes := []idx{
		{col: ColUsers, keys: bson.D{{Key: "mobile", Value: 1}}, unique: true},

		{col: ColRides, keys: bson.D{
			{Key: "pickup", Value: 1},
			{Key: "drop", Value: 1},
			{Key: "rideTime", Value: 1},
			{Key: "status", Value: 1},
		}},
		{col: ColRides, keys: bson.D{{Key: "driverId", Value: 1}}},

		{
			col:     ColRideRequests,
			keys:    bson.D{{Key: "rideId", Value: 1}, {Key: "passengerId", Value: 1}},
			unique:  true,
			partial: bson.D{{Key: "active", Value: true}},
		},
		{col: ColRideRequests, keys: bson.D{{Key: "rideId", Value: 1}, {Key: "status", Value: 1}}},
		{col: ColRideRequests, keys: bson.D{{Key: "passengerId", Value: 1}, {Key: "createdAt", Value: -1}}},

		{col: ColRideRatings, keys: bson.D{
			{Key: "rideId", Value: 1},
			{Key: "raterId", Value: 1},
			{Key: "targetUserId", Value: 1},
		}, unique: true},
		{col: ColRideRatings, keys: bson.D{{Key: "targetUserId", Value: 1}}},
	}

	for _, i := range indexes {
		model := mongo.IndexModel{Keys: i.keys}
		if i.unique || i.partial != nil {
			opts := options.Index()
			if i.unique {
				opts.SetUnique(true)
			}
			if i.partial != nil {
				opts.SetPartialFilterExpression(i.partial)
			}
			model.Options = opts
		}
		if _, err := s.col(i.col).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", i.col, err)
		}
	}
	return nil
}
