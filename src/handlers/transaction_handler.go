package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/username/shareledger/src/logger"
	"github.com/username/shareledger/src/services"
	"github.com/username/shareledger/src/utils"
)

type TransactionHandler struct {
	uploadService services.UploadService
}

func NewTransactionHandler(service services.UploadService) *TransactionHandler {
	return &TransactionHandler{uploadService: service}
}

func (h *TransactionHandler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := services.TransactionFilter{
		AccountNumber: q.Get("account_number"),
		ShareName:     q.Get("share_name"),
		Type:          q.Get("type"),
		Limit:         queryInt(q.Get("limit")),
		Offset:        queryInt(q.Get("offset")),
	}

	page, err := h.uploadService.GetTransactions(filter)
	if err != nil {
		logger.L.Error("Error retrieving transactions", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving transactions: %v", err), http.StatusInternalServerError)
		return
	}

	sendWithETag(w, r, page)
}

func queryInt(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// sendWithETag writes the payload with an ETag header and honors
// If-None-Match, the same revalidation contract the report endpoints share.
func sendWithETag(w http.ResponseWriter, r *http.Request, data interface{}) {
	currentETag, etagErr := utils.GenerateETag(data)
	if etagErr != nil {
		logger.L.Error("Failed to generate ETag", "path", r.URL.Path, "error", etagErr)
	}

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

	utils.SendJSON(w, data, http.StatusOK)
}
