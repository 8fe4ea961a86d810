package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/username/shareledger/src/logger"
)

// ErrValidationFailed marks uploads rejected before any parsing happens.
var ErrValidationFailed = errors.New("file validation failed")

// AllowedExtensions lists the spreadsheet extensions the upload endpoints
// accept.
var AllowedExtensions = map[string]bool{
	".xlsx": true,
	".xls":  true,
}

// Magic bytes for the two accepted containers. An .xlsx file is a ZIP
// archive; a legacy .xls file is an OLE2 compound document.
var (
	zipSignature  = []byte{0x50, 0x4B, 0x03, 0x04}
	ole2Signature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// ValidateExtension checks the filename extension against the allowed set.
func ValidateExtension(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !AllowedExtensions[ext] {
		logger.L.Warn("Disallowed file extension", "filename", filename, "extension", ext)
		return fmt.Errorf("%w: file type '%s' is not allowed, expected .xlsx or .xls", ErrValidationFailed, ext)
	}
	return nil
}

// ValidateFileContentByMagicBytes checks the actual file content signature.
// The read pointer is reset afterwards so the parser can read the full file.
func ValidateFileContentByMagicBytes(file io.ReadSeeker) error {
	if file == nil {
		return fmt.Errorf("%w: file is nil", ErrValidationFailed)
	}

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read file for content type checking: %w", err)
	}

	_, seekErr := file.Seek(0, io.SeekStart)
	if seekErr != nil {
		return fmt.Errorf("failed to reset file read pointer: %w", seekErr)
	}

	head := buffer[:n]
	if bytes.HasPrefix(head, zipSignature) || bytes.HasPrefix(head, ole2Signature) {
		logger.L.Debug("File content signature validated", "bytes", n)
		return nil
	}

	logger.L.Warn("File content does not match an Excel container signature")
	return fmt.Errorf("%w: file content is not a valid Excel workbook", ErrValidationFailed)
}
