package server

import (
	"context"
	"fmt"

	"github.com/rideshare-app/apiserver/config"
	"github.com/rideshare-app/apiserver/internal/db"
	"github.com/rideshare-app/apiserver/internal/services"
	"github.com/rideshare-app/apiserver/internal/store"
	"github.com/rideshare-app/apiserver/internal/store/memstore"
	"github.com/rideshare-app/apiserver/internal/store/mongostore"
)

type repositories struct {
	users    services.UserRepository
	rides    services.RideRepository
	requests services.RideRequestRepository
	ratings  services.RatingRepository
}

// openRepositories connects the store selected by cfg.StoreBackend. The
// returned func releases the connection.
func openRepositories(ctx context.Context, cfg config.Config) (repositories, func() error, error) {
	switch cfg.StoreBackend {
	case config.StoreMongo, "":
		client, err := db.OpenMongo(ctx, cfg)
		if err != nil {
			return repositories{}, nil, err
		}
		closeFn := func() error { return client.Disconnect(context.Background()) }

		ms := mongostore.New(client.Database(cfg.Mongo.DBName))
		if err := ms.EnsureIndexes(ctx); err != nil {
			_ = closeFn()
			return repositories{}, nil, fmt.Errorf("ensure indexes: %w", err)
		}
		return repositories{
			users:    ms.Users(),
			rides:    ms.Rides(),
			requests: ms.RideRequests(),
			ratings:  ms.Ratings(),
		}, closeFn, nil

	case config.StorePostgres:
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return repositories{}, nil, err
		}
		return repositories{
			users:    store.NewUserRepository(conn),
			rides:    store.NewRideRepository(conn),
			requests: store.NewRideRequestRepository(conn),
			ratings:  store.NewRatingRepository(conn),
		}, conn.Close, nil

	case config.StoreMemory:
		mem := memstore.New()
		return repositories{
			users:    mem.Users(),
			rides:    mem.Rides(),
			requests: mem.RideRequests(),
			ratings:  mem.Ratings(),
		}, func() error { return nil }, nil

	default:
		return repositories{}, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
