package handlers

import (
	"fmt"
	"net/http"

	"github.com/username/shareledger/src/logger"
	"github.com/username/shareledger/src/services"
	"github.com/username/shareledger/src/utils"
)

type PortfolioHandler struct {
	uploadService services.UploadService
}

func NewPortfolioHandler(service services.UploadService) *PortfolioHandler {
	return &PortfolioHandler{uploadService: service}
}

func (h *PortfolioHandler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year := queryInt(q.Get("year"))
	month := queryInt(q.Get("month"))

	holdings, err := h.uploadService.GetHoldings(year, month)
	if err != nil {
		logger.L.Error("Error retrieving holdings", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving holdings: %v", err), http.StatusInternalServerError)
		return
	}

	sendWithETag(w, r, holdings)
}

func (h *PortfolioHandler) HandleGetCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.uploadService.GetCompanies()
	if err != nil {
		logger.L.Error("Error retrieving companies", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving companies: %v", err), http.StatusInternalServerError)
		return
	}

	sendWithETag(w, r, companies)
}
