package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rideshare-app/apiserver/internal/handlers"
	"github.com/rideshare-app/apiserver/internal/logging"
	"github.com/rideshare-app/apiserver/internal/services"
	"github.com/rideshare-app/apiserver/internal/store/memstore"
	"github.com/rideshare-app/apiserver/types"
	"github.com/stretchr/testify/require"
)

type codeSink struct {
	mu    sync.Mutex
	codes map[string]string
}

func (c *codeSink) DeliverCode(_ context.Context, d types.CodeDelivery) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[d.Mobile] = d.Code
	return nil
}

func (c *codeSink) PublishEvent(context.Context, types.Event) error { return nil }

func (c *codeSink) code(mobile string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[mobile]
}

type testAPI struct {
	t      *testing.T
	router *chi.Mux
	mem    *memstore.Store
	codes  *codeSink
	tokens *services.TokenIssuer
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	api := &testAPI{
		t:      t,
		mem:    memstore.New(),
		codes:  &codeSink{codes: map[string]string{}},
		tokens: services.NewTokenIssuer("handler-secret", time.Hour),
	}
	logger := logging.Discard()
	opts := []services.Option{services.WithNotifier(api.codes), services.WithLogger(logger)}

	users, rides, requests, ratings := api.mem.Users(), api.mem.Rides(), api.mem.RideRequests(), api.mem.Ratings()
	reconciler := services.NewReconciler(rides, requests, opts...)
	userService := services.NewUserService(users, api.tokens, opts...)
	rideService := services.NewRideService(rides, reconciler, opts...)
	requestService := services.NewRideRequestService(rides, requests, reconciler, opts...)
	ratingService := services.NewRatingService(ratings, rides, requests, users, opts...)
	auth := handlers.RequireAuth(userService)

	router := chi.NewRouter()
	router.Route("/api/auth", func(r chi.Router) { handlers.AuthRouter(r, userService, logger) })
	router.Route("/api/rides", func(r chi.Router) { handlers.RideRouter(r, rideService, requestService, auth, logger) })
	router.Route("/api/ratings", func(r chi.Router) { handlers.RatingRouter(r, ratingService, auth, logger) })
	api.router = router
	return api
}

// do sends a request and decodes the JSON response into a generic map.
func (a *testAPI) do(method, path, token string, body any) (int, map[string]any) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

// signIn runs the code flow for mobile and returns a session token.
func (a *testAPI) signIn(mobile string, role types.Role) string {
	a.t.Helper()
	status, _ := a.do(http.MethodPost, "/api/auth/send-otp", "", map[string]string{"mobile": mobile, "role": string(role)})
	require.Equal(a.t, http.StatusOK, status)
	status, body := a.do(http.MethodPost, "/api/auth/verify-otp", "", map[string]string{"mobile": mobile, "otp": a.codes.code(mobile)})
	require.Equal(a.t, http.StatusOK, status, body)
	return body["token"].(string)
}

func (a *testAPI) userID(mobile string) string {
	a.t.Helper()
	user, err := a.mem.Users().GetByMobile(context.Background(), mobile)
	require.NoError(a.t, err)
	return user.ID
}
