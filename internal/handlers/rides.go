package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rideshare-app/apiserver/internal/services"
	"github.com/rideshare-app/apiserver/types"
)

// RideHandler provides HTTP handlers for rides and join requests.
type RideHandler struct {
	rideService    *services.RideService
	requestService *services.RideRequestService
	logger         *slog.Logger
}

// NewRideHandler constructs a RideHandler.
func NewRideHandler(rideService *services.RideService, requestService *services.RideRequestService, logger *slog.Logger) *RideHandler {
	return &RideHandler{rideService: rideService, requestService: requestService, logger: logger}
}

// RideRouter registers ride routes on the given router. Every route needs a
// session.
func RideRouter(
	r chi.Router,
	rideService *services.RideService,
	requestService *services.RideRequestService,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) {
	handler := NewRideHandler(rideService, requestService, logger)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/search", handler.Search)
		r.Get("/available", handler.Available)
		r.Post("/request", handler.RequestToJoin)
		r.Post("/verify-ride-otp", handler.VerifyRideOTP)
		r.Post("/cancel", handler.CancelRequest)
		r.Post("/publish", handler.Publish)
		r.Post("/complete", handler.Complete)
		r.Post("/cancel-ride", handler.CancelRide)
	})
}

// Search acknowledges a search intent.
func (h *RideHandler) Search(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req RideQuery
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.rideService.Search(r.Context(), identity.ID, req.Pickup, req.Drop, req.RideTime); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, "Search criteria received.")
}

// Available lists available rides matching the query string.
func (h *RideHandler) Available(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rides, err := h.rideService.ListAvailable(r.Context(), q.Get("pickup"), q.Get("drop"), q.Get("rideTime"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RidesResponse{Success: true, Rides: rides})
}

// RequestToJoin files a join request for the caller.
func (h *RideHandler) RequestToJoin(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req RideIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.requestService.RequestToJoin(r.Context(), identity.ID, req.RideID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RideRequestResponse{Success: true, Message: "Request sent to driver.", Request: created})
}

// VerifyRideOTP starts a ride once the driver presents its start code.
func (h *RideHandler) VerifyRideOTP(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req VerifyRideOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if _, err := h.rideService.VerifyStart(r.Context(), identity.ID, req.RideID, req.OTP); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, "OTP verified. Ride started.")
}

// CancelRequest withdraws the caller's open request on a ride.
func (h *RideHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req CancelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if _, err := h.requestService.Cancel(r.Context(), identity.ID, req.RideID, req.Reason); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, "Ride request cancelled.")
}

// Publish creates a ride driven by the caller.
func (h *RideHandler) Publish(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req PublishRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ride, err := h.rideService.Publish(r.Context(), identity, services.PublishRide{
		Pickup:   req.Pickup,
		Drop:     req.Drop,
		RideTime: req.RideTime,
		StartOTP: req.StartOTP,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, RideResponse{Success: true, Ride: ride})
}

// Complete finishes an active ride.
func (h *RideHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.finish(w, r, h.rideService.Complete)
}

// CancelRide withdraws a ride that has not started.
func (h *RideHandler) CancelRide(w http.ResponseWriter, r *http.Request) {
	h.finish(w, r, h.rideService.Cancel)
}

func (h *RideHandler) finish(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, driverID, rideID string) (types.Ride, error)) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req RideIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ride, err := op(r.Context(), identity.ID, req.RideID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RideResponse{Success: true, Ride: ride})
}

func (h *RideHandler) identity(w http.ResponseWriter, r *http.Request) (services.Identity, bool) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return services.Identity{}, false
	}
	return identity, true
}

type RideQuery struct {
	Pickup   string `json:"pickup"`
	Drop     string `json:"drop"`
	RideTime string `json:"rideTime"`
}

type RideIDRequest struct {
	RideID string `json:"rideId"`
}

type VerifyRideOTPRequest struct {
	RideID string `json:"rideId"`
	OTP    string `json:"otp"`
}

type CancelRequest struct {
	RideID string `json:"rideId"`
	Reason string `json:"reason"`
}

type PublishRequest struct {
	Pickup   string `json:"pickup"`
	Drop     string `json:"drop"`
	RideTime string `json:"rideTime"`
	StartOTP string `json:"startOtp"`
}

type RidesResponse struct {
	Success bool         `json:"success"`
	Rides   []types.Ride `json:"rides"`
}

type RideResponse struct {
	Success bool       `json:"success"`
	Ride    types.Ride `json:"ride"`
}

type RideRequestResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Request types.RideRequest `json:"request"`
}
