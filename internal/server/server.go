package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rideshare-app/apiserver/config"
	"github.com/rideshare-app/apiserver/internal/handlers"
	"github.com/rideshare-app/apiserver/internal/mq"
	"github.com/rideshare-app/apiserver/internal/notify"
	"github.com/rideshare-app/apiserver/internal/observability"
	"github.com/rideshare-app/apiserver/internal/ratelimit"
	"github.com/rideshare-app/apiserver/internal/services"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	logger     *slog.Logger
	closers    []func() error
	stopWorker context.CancelFunc
}

// New connects the configured backends and constructs a Server.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *Server, err error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	s := &Server{logger: logger}
	defer func() {
		if err != nil {
			s.closeAll()
		}
	}()

	repos, closeRepos, err := openRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, closeRepos)

	bus, err := mq.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, bus.Close)

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithNotifier(notify.New(bus)),
	}
	if cfg.Redis.URL != "" {
		client, err := ratelimit.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, client.Close)
		opts = append(opts, services.WithThrottle(ratelimit.NewFixedWindow(client, cfg.OTP.RateLimit, cfg.OTP.RateWindow)))
	}

	if cfg.MQBackend == config.MQLog || cfg.MQBackend == "" {
		// Nothing outside this process can consume the local broker.
		workerCtx, cancel := context.WithCancel(context.Background())
		s.stopWorker = cancel
		worker := notify.NewWorker(bus, notify.LogGateway{Logger: logger}, logger)
		go func() {
			if err := worker.Run(workerCtx); err != nil {
				logger.Error("notify worker stopped", slog.Any("error", err))
			}
		}()
	}

	tokens := services.NewTokenIssuer(cfg.JWTSecret, services.DefaultTokenTTL)
	reconciler := services.NewReconciler(repos.rides, repos.requests, opts...)
	app := App{
		Users:    services.NewUserService(repos.users, tokens, opts...),
		Rides:    services.NewRideService(repos.rides, reconciler, opts...),
		Requests: services.NewRideRequestService(repos.rides, repos.requests, reconciler, opts...),
		Ratings:  services.NewRatingService(repos.ratings, repos.rides, repos.requests, repos.users, opts...),
	}
	s.router = NewRouter(app, logger)

	port := cfg.ServerPort
	if port == 0 {
		port = 5000
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// App groups the services behind the HTTP surface.
type App struct {
	Users    *services.UserService
	Rides    *services.RideService
	Requests *services.RideRequestService
	Ratings  *services.RatingService
}

// NewRouter builds the chi router for app.
func NewRouter(app App, logger *slog.Logger) *chi.Mux {
	authMiddleware := handlers.RequireAuth(app.Users)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		observability.Middleware(logger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Handle("/metrics", promhttp.Handler())
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, app.Users, logger)
		})
		r.Route("/rides", func(r chi.Router) {
			handlers.RideRouter(r, app.Rides, app.Requests, authMiddleware, logger)
		})
		r.Route("/ratings", func(r chi.Router) {
			handlers.RatingRouter(r, app.Ratings, authMiddleware, logger)
		})
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and releases every backend.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.closeAll()
	return err
}

func (s *Server) closeAll() {
	if s.stopWorker != nil {
		s.stopWorker()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn("close backend", slog.Any("error", err))
		}
	}
	s.closers = nil
}
