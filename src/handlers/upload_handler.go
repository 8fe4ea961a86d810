package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/username/shareledger/src/config"
	"github.com/username/shareledger/src/logger"
	"github.com/username/shareledger/src/security/validation"
	"github.com/username/shareledger/src/services"
	"github.com/username/shareledger/src/utils"
)

type UploadHandler struct {
	uploadService services.UploadService
}

func NewUploadHandler(service services.UploadService) *UploadHandler {
	return &UploadHandler{
		uploadService: service,
	}
}

// openUploadFile pulls one validated file out of the parsed multipart form.
func openUploadFile(fileHeader *multipart.FileHeader) (multipart.File, error) {
	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		return nil, fmt.Errorf("%w: file %q too large, max %d MB", validation.ErrValidationFailed,
			fileHeader.Filename, config.Cfg.MaxUploadSizeBytes/(1024*1024))
	}
	if err := validation.ValidateExtension(fileHeader.Filename); err != nil {
		return nil, err
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file %q: %w", fileHeader.Filename, err)
	}
	if err := validation.ValidateFileContentByMagicBytes(file); err != nil {
		file.Close()
		return nil, err
	}
	return file, nil
}

// sendUploadError maps the service error taxonomy onto HTTP statuses.
// Validation failures and unsupported files are the client's fault,
// structural failures mean the sheet could not be understood, and anything
// else is internal.
func sendUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, validation.ErrValidationFailed), errors.Is(err, services.ErrUnsupportedFile):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrStructuralFailure):
		utils.SendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		utils.SendJSONError(w, "An internal error occurred while processing the file. Please try again later.", http.StatusInternalServerError)
	}
}

func (h *UploadHandler) HandleTransactionUpload(w http.ResponseWriter, r *http.Request) {
	username, _ := GetUsernameFromContext(r.Context())

	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "username", username, "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "username", username, "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	file.Close()

	validated, err := openUploadFile(fileHeader)
	if err != nil {
		logger.L.Warn("Upload validation failed", "username", username, "filename", fileHeader.Filename, "error", err)
		sendUploadError(w, err)
		return
	}
	defer validated.Close()

	logger.L.Info("Processing transaction upload", "username", username, "filename", fileHeader.Filename)
	summary, err := h.uploadService.ProcessTransactionUpload(validated, fileHeader.Filename)
	if err != nil {
		logger.L.Warn("Transaction upload failed", "username", username, "filename", fileHeader.Filename, "error", err)
		sendUploadError(w, err)
		return
	}

	utils.SendJSON(w, summary, http.StatusOK)
}

func (h *UploadHandler) HandlePortfolioUpload(w http.ResponseWriter, r *http.Request) {
	username, _ := GetUsernameFromContext(r.Context())

	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "username", username, "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		fileHeaders = r.MultipartForm.File["file"]
	}
	if len(fileHeaders) == 0 {
		utils.SendJSONError(w, "No files in request. Use the 'files' field.", http.StatusBadRequest)
		return
	}

	// Files are independent: a rejected file becomes a failed entry in the
	// aggregate summary and the remaining files are still processed.
	var uploads []services.UploadFile
	var rejected []*services.UploadSummary
	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	for _, fh := range fileHeaders {
		validated, err := openUploadFile(fh)
		if err != nil {
			logger.L.Warn("Portfolio upload validation failed", "username", username, "filename", fh.Filename, "error", err)
			rejected = append(rejected, &services.UploadSummary{Filename: fh.Filename, Error: err.Error()})
			continue
		}
		opened = append(opened, validated)
		uploads = append(uploads, services.UploadFile{Reader: validated, Filename: fh.Filename})
	}

	logger.L.Info("Processing portfolio upload", "username", username, "files", len(uploads), "rejected", len(rejected))
	summary := h.uploadService.ProcessPortfolioFiles(uploads)
	if len(rejected) > 0 {
		summary.TotalFiles += len(rejected)
		summary.FailedFiles += len(rejected)
		summary.Files = append(summary.Files, rejected...)
		summary.Success = false
	}

	status := http.StatusOK
	switch {
	case summary.SuccessfulFiles == 0:
		status = http.StatusUnprocessableEntity
	case summary.FailedFiles > 0:
		status = http.StatusMultiStatus
	}
	utils.SendJSON(w, summary, status)
}

func (h *UploadHandler) HandleMappingUpload(w http.ResponseWriter, r *http.Request) {
	username, _ := GetUsernameFromContext(r.Context())

	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "username", username, "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "username", username, "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	file.Close()

	validated, err := openUploadFile(fileHeader)
	if err != nil {
		logger.L.Warn("Upload validation failed", "username", username, "filename", fileHeader.Filename, "error", err)
		sendUploadError(w, err)
		return
	}
	defer validated.Close()

	logger.L.Info("Processing mapping upload", "username", username, "filename", fileHeader.Filename)
	summary, err := h.uploadService.ProcessMappingUpload(validated, fileHeader.Filename)
	if err != nil {
		logger.L.Warn("Mapping upload failed", "username", username, "filename", fileHeader.Filename, "error", err)
		sendUploadError(w, err)
		return
	}

	utils.SendJSON(w, summary, http.StatusOK)
}
