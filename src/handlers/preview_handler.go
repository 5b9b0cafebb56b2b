package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/sellersync/backend/src/logger"
	"github.com/username/sellersync/backend/src/services"
	"github.com/username/sellersync/backend/src/spapi"
	"github.com/username/sellersync/backend/src/utils"
)

type PreviewHandler struct {
	previewService services.PreviewService
}

func NewPreviewHandler(service services.PreviewService) *PreviewHandler {
	return &PreviewHandler{
		previewService: service,
	}
}

// HandleGetSettlementPreview returns the parsed, classified view of one
// settlement report, capped at the preview row limit, with ETag support.
func (h *PreviewHandler) HandleGetSettlementPreview(w http.ResponseWriter, r *http.Request) {
	companyID, ok := GetCompanyIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or company ID not found in context", http.StatusUnauthorized)
		return
	}

	reportID := r.URL.Query().Get("reportId")
	if reportID == "" {
		utils.SendJSONError(w, "reportId query parameter is required", http.StatusBadRequest)
		return
	}

	preview, err := h.previewService.GetSettlementPreview(r.Context(), companyID, reportID)
	if err != nil {
		var remoteErr *spapi.RemoteRequestError
		switch {
		case errors.Is(err, services.ErrReportNotReady):
			utils.SendJSONError(w, err.Error(), http.StatusConflict)
		case errors.As(err, &remoteErr):
			logger.L.Warn("Marketplace rejected preview lookup", "companyId", companyID, "reportId", reportID, "status", remoteErr.StatusCode)
			utils.SendJSONError(w, fmt.Sprintf("Marketplace API error: %d", remoteErr.StatusCode), http.StatusBadGateway)
		default:
			logger.L.Error("Error building settlement preview", "companyId", companyID, "reportId", reportID, "error", err)
			utils.SendJSONError(w, "Error retrieving settlement preview", http.StatusInternalServerError)
		}
		return
	}

	currentETag, etagErr := utils.GenerateETag(preview)
	w.Header().Set("Cache-Control", "no-cache, private")

	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("%q", currentETag)
		w.Header().Set("ETag", quotedETag)
		for _, cETag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(preview); err != nil {
		logger.L.Error("Error encoding settlement preview", "companyId", companyID, "error", err)
	}
}
