package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"travelsync/internal/domain"
	"travelsync/internal/middleware"
	"travelsync/internal/service"
)

// TripHandler handles HTTP requests for trips.
type TripHandler struct {
	tripService *service.TripService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripService *service.TripService) *TripHandler {
	return &TripHandler{tripService: tripService}
}

// CreateTripRequest is the HTTP request body for creating a trip.
type CreateTripRequest struct {
	Fields map[string]any `json:"fields"`
}

// UpdateTripRequest is the HTTP request body for updating a trip. The
// base revision is the revision the caller last read; an overlapping
// concurrent edit gets queued as a conflict instead of applied.
type UpdateTripRequest struct {
	BaseRevision int64          `json:"base_revision"`
	Fields       map[string]any `json:"fields"`
}

// TripResponse is the HTTP representation of a trip.
type TripResponse struct {
	ID              string   `json:"id"`
	Origin          string   `json:"origin"`
	Destination     string   `json:"destination"`
	OriginLat       *float64 `json:"origin_lat,omitempty"`
	OriginLng       *float64 `json:"origin_lng,omitempty"`
	DestinationLat  *float64 `json:"destination_lat,omitempty"`
	DestinationLng  *float64 `json:"destination_lng,omitempty"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time,omitempty"`
	TravelMode      string   `json:"travel_mode"`
	TripType        string   `json:"trip_type"`
	Status          string   `json:"status"`
	DistanceMeters  float64  `json:"distance_meters"`
	DurationSeconds int64    `json:"duration_seconds"`
	Revision        int64    `json:"revision"`
	UpdatedAt       string   `json:"updated_at"`
}

// LocationPointResponse is the HTTP representation of a GPS sample.
type LocationPointResponse struct {
	ID        string   `json:"id"`
	TripID    string   `json:"trip_id"`
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Timestamp string   `json:"timestamp"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
}

// Create handles POST /v1/trips
func (h *TripHandler) Create(c *gin.Context) {
	var req CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.tripService.Create(c.Request.Context(), middleware.OwnerID(c), domain.FieldMap(req.Fields))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toTripResponse(trip))
}

// Get handles GET /v1/trips/:id
func (h *TripHandler) Get(c *gin.Context) {
	trip, err := h.tripService.Get(c.Request.Context(), middleware.OwnerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTripResponse(trip))
}

// List handles GET /v1/trips
func (h *TripHandler) List(c *gin.Context) {
	trips, err := h.tripService.List(c.Request.Context(), middleware.OwnerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]TripResponse, 0, len(trips))
	for _, trip := range trips {
		response = append(response, toTripResponse(trip))
	}

	respondJSON(c, http.StatusOK, response)
}

// Update handles PUT /v1/trips/:id
func (h *TripHandler) Update(c *gin.Context) {
	var req UpdateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.tripService.Update(c.Request.Context(), middleware.OwnerID(c), c.Param("id"), req.BaseRevision, domain.FieldMap(req.Fields))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTripResponse(trip))
}

// Delete handles DELETE /v1/trips/:id
func (h *TripHandler) Delete(c *gin.Context) {
	if err := h.tripService.Delete(c.Request.Context(), middleware.OwnerID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Locations handles GET /v1/trips/:id/locations
func (h *TripHandler) Locations(c *gin.Context) {
	points, err := h.tripService.Locations(c.Request.Context(), middleware.OwnerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]LocationPointResponse, 0, len(points))
	for _, p := range points {
		response = append(response, LocationPointResponse{
			ID:        p.ID,
			TripID:    p.TripID,
			Lat:       p.Lat,
			Lng:       p.Lng,
			Timestamp: p.Timestamp.Format(time.RFC3339),
			Accuracy:  p.Accuracy,
			Speed:     p.Speed,
			Heading:   p.Heading,
		})
	}

	respondJSON(c, http.StatusOK, response)
}

func toTripResponse(trip *domain.Trip) TripResponse {
	response := TripResponse{
		ID:              trip.ID,
		Origin:          trip.Origin,
		Destination:     trip.Destination,
		OriginLat:       trip.OriginLat,
		OriginLng:       trip.OriginLng,
		DestinationLat:  trip.DestinationLat,
		DestinationLng:  trip.DestinationLng,
		StartTime:       trip.StartTime.Format(time.RFC3339),
		TravelMode:      string(trip.TravelMode),
		TripType:        string(trip.TripType),
		Status:          string(trip.Status),
		DistanceMeters:  trip.DistanceMeters,
		DurationSeconds: trip.DurationSeconds,
		Revision:        trip.Revision,
		UpdatedAt:       trip.UpdatedAt.Format(time.RFC3339),
	}
	if !trip.EndTime.IsZero() {
		response.EndTime = trip.EndTime.Format(time.RFC3339)
	}
	return response
}
