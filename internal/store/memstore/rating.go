package memstore

import (
	"context"
	"sort"

	"github.com/rideshare-app/apiserver/internal/store"
	"github.com/rideshare-app/apiserver/types"
)

type RatingRepository struct {
	s *Store
}

func (r *RatingRepository) Create(_ context.Context, rating types.RideRating) (types.RideRating, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.ratings {
		if existing.RideID == rating.RideID &&
			existing.RaterID == rating.RaterID &&
			existing.TargetUserID == rating.TargetUserID {
			return types.RideRating{}, store.ErrDuplicate
		}
	}
	if rating.ID == "" {
		rating.ID = types.NewID()
	}
	rating.CreatedAt = r.s.now()
	r.s.ratings[rating.ID] = rating
	return rating, nil
}

func (r *RatingRepository) ListByTarget(_ context.Context, targetUserID string) ([]types.RideRating, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ratings := make([]types.RideRating, 0)
	for _, rating := range r.s.ratings {
		if rating.TargetUserID == targetUserID {
			ratings = append(ratings, rating)
		}
	}
	sort.SliceStable(ratings, func(i, j int) bool { return ratings[i].CreatedAt.After(ratings[j].CreatedAt) })
	return ratings, nil
}
