package mongostore

import (
	"context"
	"time"

	"github.com/rideshare-app/apiserver/internal/store"
	"github.com/rideshare-app/apiserver/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type rideDoc struct {
	ID        bson.ObjectID `bson:"_id"`
	DriverID  bson.ObjectID `bson:"driverId"`
	Pickup    string        `bson:"pickup"`
	Drop      string        `bson:"drop"`
	RideTime  time.Time     `bson:"rideTime"`
	Status    string        `bson:"status"`
	StartOTP  *string       `bson:"startOtp"`
	CreatedAt time.Time     `bson:"createdAt,omitempty"`
}

func (d rideDoc) toRide() types.Ride {
	status := types.RideStatus(d.Status)
	if status == "" {
		status = types.RideAvailable
	}
	return types.Ride{
		ID:        d.ID.Hex(),
		DriverID:  hexOrEmpty(d.DriverID),
		Pickup:    d.Pickup,
		Drop:      d.Drop,
		RideTime:  d.RideTime,
		Status:    status,
		StartOTP:  d.StartOTP,
		CreatedAt: d.CreatedAt,
	}
}

// RideRepository handles persistence for rides.
type RideRepository struct {
	col *mongo.Collection
}

func (r *RideRepository) Get(ctx context.Context, id string) (types.Ride, error) {
	oid, err := objectID(id)
	if err != nil {
		return types.Ride{}, err
	}
	doc, err := findOne[rideDoc](ctx, r.col, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return types.Ride{}, err
	}
	return doc.toRide(), nil
}

func (r *RideRepository) Create(ctx context.Context, ride types.Ride) (types.Ride, error) {
	oid, err := newObjectID(ride.ID)
	if err != nil {
		return types.Ride{}, err
	}
	driverID, err := objectID(ride.DriverID)
	if err != nil {
		return types.Ride{}, err
	}
	doc := rideDoc{
		ID:        oid,
		DriverID:  driverID,
		Pickup:    ride.Pickup,
		Drop:      ride.Drop,
		RideTime:  ride.RideTime,
		Status:    string(ride.Status),
		StartOTP:  ride.StartOTP,
		CreatedAt: time.Now(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return types.Ride{}, wrapError(err)
	}
	return doc.toRide(), nil
}

func (r *RideRepository) list(ctx context.Context, filter bson.D, sort bson.D) ([]types.Ride, error) {
	docs, err := findMany[rideDoc](ctx, r.col, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	rides := make([]types.Ride, 0, len(docs))
	for _, doc := range docs {
		rides = append(rides, doc.toRide())
	}
	return rides, nil
}

func (r *RideRepository) ListAvailable(ctx context.Context, pickup, drop string, rideTime time.Time) ([]types.Ride, error) {
	return r.list(ctx, bson.D{
		{Key: "pickup", Value: pickup},
		{Key: "drop", Value: drop},
		{Key: "rideTime", Value: rideTime},
		{Key: "status", Value: string(types.RideAvailable)},
	}, bson.D{{Key: "_id", Value: 1}})
}

func (r *RideRepository) ListByDriver(ctx context.Context, driverID string) ([]types.Ride, error) {
	oid, err := objectID(driverID)
	if err != nil {
		return []types.Ride{}, nil
	}
	return r.list(ctx, bson.D{{Key: "driverId", Value: oid}}, bson.D{{Key: "rideTime", Value: -1}})
}

// Transition applies t to the ride in a single conditional update.
func (r *RideRepository) Transition(ctx context.Context, id string, t store.RideTransition) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	filter := bson.D{
		{Key: "_id", Value: oid},
		{Key: "status", Value: bson.D{{Key: "$in", Value: t.FromStrings()}}},
	}
	if t.MatchOTP != "" {
		filter = append(filter, bson.E{Key: "startOtp", Value: t.MatchOTP})
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: string(t.To)},
		{Key: "startOtp", Value: t.StartOTP},
	}}}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	found, err := exists(ctx, r.col, oid)
	if err != nil {
		return err
	}
	if !found {
		return store.ErrNotFound
	}
	return store.ErrConflict
}
