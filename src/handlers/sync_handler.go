package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/username/sellersync/backend/src/config"
	"github.com/username/sellersync/backend/src/logger"
	"github.com/username/sellersync/backend/src/services"
	"github.com/username/sellersync/backend/src/utils"
)

type SyncHandler struct {
	syncService services.SyncService
}

func NewSyncHandler(service services.SyncService) *SyncHandler {
	return &SyncHandler{
		syncService: service,
	}
}

type syncRequestBody struct {
	MarketplaceID string `json:"marketplaceId"`
	StartDate     string `json:"startDate"` // RFC 3339
	EndDate       string `json:"endDate"`
}

// HandleRunSync starts a sync pipeline for the window in the request body.
// The pipeline runs synchronously; the response carries the terminal run
// status and row counts, including partial counts on failure.
func (h *SyncHandler) HandleRunSync(w http.ResponseWriter, r *http.Request) {
	companyID, ok := GetCompanyIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or company ID not found in context", http.StatusUnauthorized)
		return
	}

	kind := r.PathValue("kind")

	var body syncRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	startDate, err := time.Parse(time.RFC3339, body.StartDate)
	if err != nil {
		utils.SendJSONError(w, "Invalid startDate, expected RFC 3339 timestamp", http.StatusBadRequest)
		return
	}
	endDate, err := time.Parse(time.RFC3339, body.EndDate)
	if err != nil {
		utils.SendJSONError(w, "Invalid endDate, expected RFC 3339 timestamp", http.StatusBadRequest)
		return
	}
	if !endDate.After(startDate) {
		utils.SendJSONError(w, "endDate must be after startDate", http.StatusBadRequest)
		return
	}

	marketplaceID := body.MarketplaceID
	if marketplaceID == "" {
		marketplaceID = config.Cfg.DefaultMarketplaceID
	}
	if marketplaceID == "" {
		utils.SendJSONError(w, "marketplaceId is required", http.StatusBadRequest)
		return
	}

	logger.L.Info("Sync requested", "companyId", companyID, "kind", kind,
		"marketplaceId", marketplaceID, "startDate", body.StartDate, "endDate", body.EndDate)

	result, err := h.syncService.RunSync(r.Context(), kind, services.SyncRequest{
		CompanyID:     companyID,
		MarketplaceID: marketplaceID,
		StartDate:     startDate,
		EndDate:       endDate,
	})
	if err != nil {
		if errors.Is(err, services.ErrUnknownSyncKind) {
			utils.SendJSONError(w, fmt.Sprintf("Unknown sync kind %q", kind), http.StatusNotFound)
			return
		}
		if result != nil {
			// The run failed mid-pipeline: surface the failed status and the
			// partial counts rather than a bare error.
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			json.NewEncoder(w).Encode(result)
			return
		}
		utils.SendJSONError(w, "Failed to start sync run", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.L.Error("Error encoding sync result", "companyId", companyID, "error", err)
	}
}

// HandleListRuns returns the run audit trail for the calling company.
func (h *SyncHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	companyID, ok := GetCompanyIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or company ID not found in context", http.StatusUnauthorized)
		return
	}

	runs, err := h.syncService.ListRuns(companyID)
	if err != nil {
		logger.L.Error("Error listing sync runs", "companyId", companyID, "error", err)
		utils.SendJSONError(w, "Error retrieving sync runs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(runs); err != nil {
		logger.L.Error("Error encoding sync runs", "companyId", companyID, "error", err)
	}
}

// HandleGetRun returns one run record by id.
func (h *SyncHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	companyID, ok := GetCompanyIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or company ID not found in context", http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid run id", http.StatusBadRequest)
		return
	}

	run, err := h.syncService.GetRun(id)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Run %d not found", id), http.StatusNotFound)
		return
	}
	if run.CompanyID != companyID {
		utils.SendJSONError(w, fmt.Sprintf("Run %d not found", id), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(run); err != nil {
		logger.L.Error("Error encoding sync run", "runId", id, "error", err)
	}
}
