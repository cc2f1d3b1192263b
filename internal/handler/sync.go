package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"travelsync/internal/domain"
	"travelsync/internal/middleware"
	"travelsync/internal/service"
)

// SyncHandler handles HTTP requests for batch synchronization.
type SyncHandler struct {
	syncService   *service.SyncService
	statusService *service.StatusService
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(syncService *service.SyncService, statusService *service.StatusService) *SyncHandler {
	return &SyncHandler{
		syncService:   syncService,
		statusService: statusService,
	}
}

// SyncRecordRequest is one record inside a sync batch.
type SyncRecordRequest struct {
	EntityType    string         `json:"entity_type"`
	ClientLocalID string         `json:"client_local_id"`
	ServerID      string         `json:"server_id,omitempty"`
	BaseRevision  int64          `json:"base_revision,omitempty"`
	Fields        map[string]any `json:"fields"`
}

// SyncRequest is the HTTP request body for a sync batch.
type SyncRequest struct {
	ClientID    string              `json:"client_id"`
	SubmittedAt string              `json:"submitted_at,omitempty"`
	Records     []SyncRecordRequest `json:"records"`
}

// SyncEntryResponse is one manifest entry in the sync response.
type SyncEntryResponse struct {
	ClientLocalID string `json:"client_local_id"`
	EntityType    string `json:"entity_type"`
	Status        string `json:"status"`
	ServerID      string `json:"server_id,omitempty"`
	Revision      int64  `json:"revision,omitempty"`
	ConflictID    string `json:"conflict_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// SyncResponse is the HTTP response for a sync batch: the per-record
// manifest in submission order.
type SyncResponse struct {
	ClientID    string              `json:"client_id"`
	ProcessedAt string              `json:"processed_at"`
	Entries     []SyncEntryResponse `json:"entries"`
}

// SyncStatusResponse is the HTTP response for the status poll.
type SyncStatusResponse struct {
	State      string `json:"state"`
	LastSyncAt string `json:"last_sync_at,omitempty"`
}

// Sync handles POST /v1/sync
func (h *SyncHandler) Sync(c *gin.Context) {
	h.runBatch(c, h.syncService.ProcessBatch)
}

// ForceSync handles POST /v1/sync/force
func (h *SyncHandler) ForceSync(c *gin.Context) {
	h.runBatch(c, h.syncService.ProcessForce)
}

func (h *SyncHandler) runBatch(c *gin.Context, run func(ctx context.Context, ownerID string, batch domain.SyncBatch) (*domain.SyncManifest, error)) {
	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	batch := domain.SyncBatch{
		ClientID:    req.ClientID,
		SubmittedAt: time.Now().UTC(),
	}
	if req.SubmittedAt != "" {
		submitted, err := time.Parse(time.RFC3339, req.SubmittedAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid submitted_at timestamp"})
			return
		}
		batch.SubmittedAt = submitted
	}

	for _, rec := range req.Records {
		batch.Records = append(batch.Records, domain.RecordMutation{
			EntityType:    domain.EntityType(rec.EntityType),
			ClientLocalID: rec.ClientLocalID,
			ServerID:      rec.ServerID,
			BaseRevision:  rec.BaseRevision,
			Fields:        domain.FieldMap(rec.Fields),
		})
	}

	manifest, err := run(c.Request.Context(), middleware.OwnerID(c), batch)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toSyncResponse(manifest))
}

// Status handles GET /v1/sync/status
func (h *SyncHandler) Status(c *gin.Context) {
	status, err := h.statusService.Get(c.Request.Context(), middleware.OwnerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	response := SyncStatusResponse{State: status.State}
	if !status.LastSyncAt.IsZero() {
		response.LastSyncAt = status.LastSyncAt.Format(time.RFC3339)
	}

	respondJSON(c, http.StatusOK, response)
}

func toSyncResponse(manifest *domain.SyncManifest) SyncResponse {
	response := SyncResponse{
		ClientID:    manifest.ClientID,
		ProcessedAt: manifest.ProcessedAt.Format(time.RFC3339),
	}
	for _, e := range manifest.Entries {
		response.Entries = append(response.Entries, SyncEntryResponse{
			ClientLocalID: e.ClientLocalID,
			EntityType:    string(e.EntityType),
			Status:        string(e.Status),
			ServerID:      e.ServerID,
			Revision:      e.Revision,
			ConflictID:    e.ConflictID,
			Reason:        string(e.Reason),
		})
	}
	return response
}
