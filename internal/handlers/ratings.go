package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rideshare-app/apiserver/internal/services"
	"github.com/rideshare-app/apiserver/types"
)

// RatingHandler serves the rating ledger and the per-user ride views.
type RatingHandler struct {
	ratingService *services.RatingService
	logger        *slog.Logger
}

func NewRatingHandler(ratingService *services.RatingService, logger *slog.Logger) *RatingHandler {
	return &RatingHandler{ratingService: ratingService, logger: logger}
}

// RatingRouter registers rating routes on the given router.
func RatingRouter(
	r chi.Router,
	ratingService *services.RatingService,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) {
	handler := NewRatingHandler(ratingService, logger)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/submit-rating", handler.Submit)
		r.Get("/booked", handler.Booked)
		r.Get("/booked/{rideRequestID}", handler.BookedDetail)
		r.Get("/my-requests", handler.MyRequests)
		r.Get("/published", handler.Published)
		r.Get("/users/{userID}/summary", handler.Summary)
	})
}

// Submit records a rating from the caller.
func (h *RatingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req SubmitRatingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	_, err = h.ratingService.Submit(r.Context(), identity.ID, services.SubmitRating{
		RideID:       req.RideID,
		TargetUserID: req.TargetUserID,
		Rating:       req.Rating,
		Review:       req.Review,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, "Rating submitted")
}

// Booked lists the caller's accepted and approved requests.
func (h *RatingHandler) Booked(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	views, err := h.ratingService.Booked(r.Context(), identity.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, BookedResponse{Success: true, Rides: views})
}

// MyRequests lists every request the caller filed.
func (h *RatingHandler) MyRequests(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	views, err := h.ratingService.MyRequests(r.Context(), identity.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RequestsResponse{Success: true, Requests: views})
}

// Published lists the rides the caller drives.
func (h *RatingHandler) Published(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	rides, err := h.ratingService.Published(r.Context(), identity.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RidesResponse{Success: true, Rides: rides})
}

// BookedDetail returns one request to its passenger or its ride's driver.
func (h *RatingHandler) BookedDetail(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	view, err := h.ratingService.BookedDetail(r.Context(), identity.ID, chi.URLParam(r, "rideRequestID"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RequestResponse{Success: true, Request: view})
}

// Summary returns the rating count and mean of a user.
func (h *RatingHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ratingService.Summary(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryResponse{Success: true, Summary: summary})
}

type SubmitRatingRequest struct {
	RideID       string `json:"rideId"`
	TargetUserID string `json:"targetUserId"`
	Rating       int    `json:"rating"`
	Review       string `json:"review"`
}

type BookedResponse struct {
	Success bool                    `json:"success"`
	Rides   []types.RideRequestView `json:"rides"`
}

type RequestsResponse struct {
	Success  bool                    `json:"success"`
	Requests []types.RideRequestView `json:"requests"`
}

type RequestResponse struct {
	Success bool                  `json:"success"`
	Request types.RideRequestView `json:"request"`
}

type SummaryResponse struct {
	Success bool                   `json:"success"`
	Summary services.RatingSummary `json:"summary"`
}
