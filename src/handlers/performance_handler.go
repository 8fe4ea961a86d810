package handlers

import (
	"fmt"
	"net/http"

	"github.com/username/shareledger/src/logger"
	"github.com/username/shareledger/src/services"
	"github.com/username/shareledger/src/utils"
)

type PerformanceHandler struct {
	performanceService services.PerformanceService
}

func NewPerformanceHandler(service services.PerformanceService) *PerformanceHandler {
	return &PerformanceHandler{performanceService: service}
}

func (h *PerformanceHandler) HandleGetPerformance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := services.PerformanceFilter{
		ShareName: q.Get("share_name"),
		Year:      queryInt(q.Get("year")),
		Month:     queryInt(q.Get("month")),
	}

	results, err := h.performanceService.GetPerformance(filter)
	if err != nil {
		logger.L.Error("Error retrieving performance rows", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving performance rows: %v", err), http.StatusInternalServerError)
		return
	}

	sendWithETag(w, r, results)
}

func (h *PerformanceHandler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	username, _ := GetUsernameFromContext(r.Context())
	logger.L.Info("Performance recompute requested", "username", username)

	summary, err := h.performanceService.Recompute()
	if err != nil {
		logger.L.Error("Performance recompute failed", "username", username, "error", err)
		utils.SendJSONError(w, "Performance recompute failed. See server logs for details.", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, summary, http.StatusOK)
}
