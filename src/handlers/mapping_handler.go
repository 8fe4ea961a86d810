package handlers

import (
	"fmt"
	"net/http"

	"github.com/username/shareledger/src/logger"
	"github.com/username/shareledger/src/services"
	"github.com/username/shareledger/src/utils"
)

type MappingHandler struct {
	uploadService services.UploadService
}

func NewMappingHandler(service services.UploadService) *MappingHandler {
	return &MappingHandler{uploadService: service}
}

func (h *MappingHandler) HandleGetMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.uploadService.GetMappings()
	if err != nil {
		logger.L.Error("Error retrieving mappings", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving mappings: %v", err), http.StatusInternalServerError)
		return
	}

	sendWithETag(w, r, mappings)
}

func (h *MappingHandler) HandleGetShareNames(w http.ResponseWriter, r *http.Request) {
	names, err := h.uploadService.GetShareNames()
	if err != nil {
		logger.L.Error("Error retrieving share names", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving share names: %v", err), http.StatusInternalServerError)
		return
	}

	sendWithETag(w, r, names)
}
