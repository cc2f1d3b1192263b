package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"travelsync/internal/domain"
	"travelsync/internal/middleware"
	"travelsync/internal/service"
)

// ConflictHandler handles HTTP requests for the conflict queue.
type ConflictHandler struct {
	conflictService *service.ConflictService
}

// NewConflictHandler creates a new ConflictHandler.
func NewConflictHandler(conflictService *service.ConflictService) *ConflictHandler {
	return &ConflictHandler{conflictService: conflictService}
}

// ConflictResponse is the HTTP representation of a queued conflict.
type ConflictResponse struct {
	ID             string         `json:"id"`
	EntityType     string         `json:"entity_type"`
	EntityID       string         `json:"entity_id"`
	ClientID       string         `json:"client_id"`
	ServerRevision int64          `json:"server_revision"`
	ClientValue    map[string]any `json:"client_value"`
	ServerValue    map[string]any `json:"server_value"`
	DetectedAt     string         `json:"detected_at"`
	Status         string         `json:"status"`
	Resolution     string         `json:"resolution,omitempty"`
	ResolvedAt     string         `json:"resolved_at,omitempty"`
}

// ResolveConflictRequest is the HTTP request body for resolving a conflict.
type ResolveConflictRequest struct {
	Resolution   string         `json:"resolution"` // keep-server, keep-client, merged
	MergedFields map[string]any `json:"merged_fields,omitempty"`
}

// ResolveConflictResponse is the HTTP response after a resolution.
type ResolveConflictResponse struct {
	Conflict ConflictResponse `json:"conflict"`
	EntityID string           `json:"entity_id"`
	Revision int64            `json:"revision"`
	Fields   map[string]any   `json:"fields"`
}

// List handles GET /v1/sync/conflicts
func (h *ConflictHandler) List(c *gin.Context) {
	status := domain.ConflictStatus(c.Query("status"))

	conflicts, err := h.conflictService.List(c.Request.Context(), middleware.OwnerID(c), status)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]ConflictResponse, 0, len(conflicts))
	for _, conflict := range conflicts {
		response = append(response, toConflictResponse(conflict))
	}

	respondJSON(c, http.StatusOK, response)
}

// Get handles GET /v1/sync/conflicts/:id
func (h *ConflictHandler) Get(c *gin.Context) {
	conflict, err := h.conflictService.Get(c.Request.Context(), middleware.OwnerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toConflictResponse(conflict))
}

// Resolve handles POST /v1/sync/conflicts/:id/resolve
func (h *ConflictHandler) Resolve(c *gin.Context) {
	var req ResolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.conflictService.Resolve(c.Request.Context(), middleware.OwnerID(c), service.ResolveRequest{
		ConflictID:   c.Param("id"),
		Resolution:   domain.Resolution(req.Resolution),
		MergedFields: domain.FieldMap(req.MergedFields),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, ResolveConflictResponse{
		Conflict: toConflictResponse(result.Conflict),
		EntityID: result.EntityID,
		Revision: result.Revision,
		Fields:   result.Fields,
	})
}

func toConflictResponse(conflict *domain.ConflictRecord) ConflictResponse {
	response := ConflictResponse{
		ID:             conflict.ID,
		EntityType:     string(conflict.EntityType),
		EntityID:       conflict.EntityID,
		ClientID:       conflict.ClientID,
		ServerRevision: conflict.ServerRevision,
		ClientValue:    conflict.ClientValue,
		ServerValue:    conflict.ServerValue,
		DetectedAt:     conflict.DetectedAt.Format(time.RFC3339),
		Status:         string(conflict.Status),
		Resolution:     string(conflict.Resolution),
	}
	if !conflict.ResolvedAt.IsZero() {
		response.ResolvedAt = conflict.ResolvedAt.Format(time.RFC3339)
	}
	return response
}
