package mongostore

import (
	"context"
	"time"

	"github.com/rideshare-app/apiserver/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type ratingDoc struct {
	ID           bson.ObjectID `bson:"_id"`
	RideID       bson.ObjectID `bson:"rideId"`
	RaterID      bson.ObjectID `bson:"raterId"`
	TargetUserID bson.ObjectID `bson:"targetUserId"`
	Rating       int           `bson:"rating"`
	Review       string        `bson:"review,omitempty"`
	CreatedAt    time.Time     `bson:"createdAt"`
}

func (d ratingDoc) toRating() types.RideRating {
	return types.RideRating{
		ID:           d.ID.Hex(),
		RideID:       hexOrEmpty(d.RideID),
		RaterID:      hexOrEmpty(d.RaterID),
		TargetUserID: hexOrEmpty(d.TargetUserID),
		Rating:       d.Rating,
		Review:       d.Review,
		CreatedAt:    d.CreatedAt,
	}
}

// RatingRepository handles persistence for ride ratings.
type RatingRepository struct {
	col *mongo.Collection
}

func (r *RatingRepository) Create(ctx context.Context, rating types.RideRating) (types.RideRating, error) {
	oid, err := newObjectID(rating.ID)
	if err != nil {
		return types.RideRating{}, err
	}
	rideID, err := objectID(rating.RideID)
	if err != nil {
		return types.RideRating{}, err
	}
	raterID, err := objectID(rating.RaterID)
	if err != nil {
		return types.RideRating{}, err
	}
	targetID, err := objectID(rating.TargetUserID)
	if err != nil {
		return types.RideRating{}, err
	}
	doc := ratingDoc{
		ID:           oid,
		RideID:       rideID,
		RaterID:      raterID,
		TargetUserID: targetID,
		Rating:       rating.Rating,
		Review:       rating.Review,
		CreatedAt:    time.Now(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return types.RideRating{}, wrapError(err)
	}
	return doc.toRating(), nil
}

func (r *RatingRepository) ListByTarget(ctx context.Context, targetUserID string) ([]types.RideRating, error) {
	oid, err := objectID(targetUserID)
	if err != nil {
		return []types.RideRating{}, nil
	}
	docs, err := findMany[ratingDoc](ctx, r.col, bson.D{{Key: "targetUserId", Value: oid}}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	ratings := make([]types.RideRating, 0, len(docs))
	for _, doc := range docs {
		ratings = append(ratings, doc.toRating())
	}
	return ratings, nil
}
