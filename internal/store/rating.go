package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rideshare-app/apiserver/types"
)

// RatingRepository handles persistence for ride ratings.
type RatingRepository struct {
	db *sql.DB
}

func NewRatingRepository(db *sql.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Create inserts a rating. The unique constraint on (ride, rater, target)
// makes a repeated rating fail with ErrDuplicate.
func (r *RatingRepository) Create(ctx context.Context, rating types.RideRating) (types.RideRating, error) {
	if rating.ID == "" {
		rating.ID = types.NewID()
	}
	rating.CreatedAt = time.Now()

	const query = `
		INSERT INTO ride_ratings (id, ride_id, rater_id, target_user_id, rating, review, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		rating.ID,
		rating.RideID,
		rating.RaterID,
		rating.TargetUserID,
		rating.Rating,
		rating.Review,
		rating.CreatedAt,
	)
	if err != nil {
		return types.RideRating{}, wrapError(err)
	}
	return rating, nil
}

func (r *RatingRepository) ListByTarget(ctx context.Context, targetUserID string) ([]types.RideRating, error) {
	const query = `
		SELECT id, ride_id, rater_id, target_user_id, rating, review, created_at
		FROM ride_ratings
		WHERE target_user_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, targetUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ratings := make([]types.RideRating, 0)
	for rows.Next() {
		var rating types.RideRating
		if err := rows.Scan(
			&rating.ID,
			&rating.RideID,
			&rating.RaterID,
			&rating.TargetUserID,
			&rating.Rating,
			&rating.Review,
			&rating.CreatedAt,
		); err != nil {
			return nil, err
		}
		ratings = append(ratings, rating)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ratings, nil
}
