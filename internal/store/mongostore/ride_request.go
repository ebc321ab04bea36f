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

// requestDoc carries Active alongside Status: it is true exactly while the
// request is open, and the partial unique index on (rideId, passengerId)
// only covers documents with active set.
type requestDoc struct {
	ID                 bson.ObjectID `bson:"_id"`
	RideID             bson.ObjectID `bson:"rideId"`
	PassengerID        bson.ObjectID `bson:"passengerId"`
	Status             string        `bson:"status"`
	CancellationReason string        `bson:"cancellationReason,omitempty"`
	Active             bool          `bson:"active"`
	CreatedAt          time.Time     `bson:"createdAt"`
}

func (d requestDoc) toRequest() types.RideRequest {
	return types.RideRequest{
		ID:                 d.ID.Hex(),
		RideID:             hexOrEmpty(d.RideID),
		PassengerID:        hexOrEmpty(d.PassengerID),
		Status:             types.RideRequestStatus(d.Status),
		CancellationReason: d.CancellationReason,
		CreatedAt:          d.CreatedAt,
	}
}

// RideRequestRepository handles persistence for join requests.
type RideRequestRepository struct {
	col *mongo.Collection
}

func statusIn(statuses []types.RideRequestStatus) bson.D {
	return bson.D{{Key: "$in", Value: store.RequestStatusStrings(statuses)}}
}

func (r *RideRequestRepository) Get(ctx context.Context, id string) (types.RideRequest, error) {
	oid, err := objectID(id)
	if err != nil {
		return types.RideRequest{}, err
	}
	doc, err := findOne[requestDoc](ctx, r.col, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return types.RideRequest{}, err
	}
	return doc.toRequest(), nil
}

func (r *RideRequestRepository) Create(ctx context.Context, req types.RideRequest) (types.RideRequest, error) {
	oid, err := newObjectID(req.ID)
	if err != nil {
		return types.RideRequest{}, err
	}
	rideID, err := objectID(req.RideID)
	if err != nil {
		return types.RideRequest{}, err
	}
	passengerID, err := objectID(req.PassengerID)
	if err != nil {
		return types.RideRequest{}, err
	}
	doc := requestDoc{
		ID:                 oid,
		RideID:             rideID,
		PassengerID:        passengerID,
		Status:             string(req.Status),
		CancellationReason: req.CancellationReason,
		Active:             req.Status.Open(),
		CreatedAt:          time.Now(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return types.RideRequest{}, wrapError(err)
	}
	return doc.toRequest(), nil
}

// backfillActive derives the active flag for documents stored without it,
// so that open requests written before the flag existed are covered by the
// partial unique index. It returns how many documents were updated.
func (r *RideRequestRepository) backfillActive(ctx context.Context) (int64, error) {
	var modified int64
	for _, open := range []bool{true, false} {
		status := statusIn(store.OpenRequestStatuses)
		if !open {
			status = bson.D{{Key: "$nin", Value: store.RequestStatusStrings(store.OpenRequestStatuses)}}
		}
		res, err := r.col.UpdateMany(ctx,
			bson.D{
				{Key: "active", Value: bson.D{{Key: "$exists", Value: false}}},
				{Key: "status", Value: status},
			},
			bson.D{{Key: "$set", Value: bson.D{{Key: "active", Value: open}}}},
		)
		if err != nil {
			return modified, wrapError(err)
		}
		modified += res.ModifiedCount
	}
	return modified, nil
}

func (r *RideRequestRepository) FindOpen(ctx context.Context, rideID, passengerID string) (types.RideRequest, error) {
	rideOID, err := objectID(rideID)
	if err != nil {
		return types.RideRequest{}, err
	}
	passengerOID, err := objectID(passengerID)
	if err != nil {
		return types.RideRequest{}, err
	}
	filter := bson.D{
		{Key: "rideId", Value: rideOID},
		{Key: "passengerId", Value: passengerOID},
		{Key: "status", Value: statusIn(store.OpenRequestStatuses)},
	}
	var doc requestDoc
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if err := r.col.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		return types.RideRequest{}, wrapError(err)
	}
	return doc.toRequest(), nil
}

func (r *RideRequestRepository) Cancel(ctx context.Context, id, reason string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	filter := bson.D{
		{Key: "_id", Value: oid},
		{Key: "status", Value: statusIn(store.OpenRequestStatuses)},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: string(types.RequestCancelled)},
		{Key: "cancellationReason", Value: reason},
		{Key: "active", Value: false},
	}}}
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrConflict
	}
	return nil
}

func (r *RideRequestRepository) ApprovePending(ctx context.Context, rideID string) (int64, error) {
	oid, err := objectID(rideID)
	if err != nil {
		return 0, err
	}
	filter := bson.D{
		{Key: "rideId", Value: oid},
		{Key: "status", Value: string(types.RequestPending)},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: string(types.RequestApproved)},
		{Key: "active", Value: false},
	}}}
	res, err := r.col.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, wrapError(err)
	}
	return res.ModifiedCount, nil
}

func (r *RideRequestRepository) CountByStatus(ctx context.Context, rideID string, statuses []types.RideRequestStatus) (int64, error) {
	oid, err := objectID(rideID)
	if err != nil {
		return 0, err
	}
	n, err := r.col.CountDocuments(ctx, bson.D{
		{Key: "rideId", Value: oid},
		{Key: "status", Value: statusIn(statuses)},
	})
	if err != nil {
		return 0, wrapError(err)
	}
	return n, nil
}

func (r *RideRequestRepository) ListByPassenger(ctx context.Context, passengerID string, statuses []types.RideRequestStatus) ([]types.RideRequest, error) {
	oid, err := objectID(passengerID)
	if err != nil {
		return []types.RideRequest{}, nil
	}
	filter := bson.D{{Key: "passengerId", Value: oid}}
	if len(statuses) > 0 {
		filter = append(filter, bson.E{Key: "status", Value: statusIn(statuses)})
	}
	docs, err := findMany[requestDoc](ctx, r.col, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	requests := make([]types.RideRequest, 0, len(docs))
	for _, doc := range docs {
		requests = append(requests, doc.toRequest())
	}
	return requests, nil
}
