package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/feichai0017/pii-guardian/internal/models"
	"github.com/feichai0017/pii-guardian/pkg/logger"
)

const (
	CodeMissingFile       = "MISSING_FILE"
	CodeEmptyFile         = "EMPTY_FILE"
	CodeMissingMediaType  = "MISSING_MEDIA_TYPE"
	CodeInvalidMediaType  = "INVALID_MEDIA_TYPE"
	CodeMediaTypeMismatch = "MEDIA_TYPE_MISMATCH"
	CodeFileTooLarge      = "FILE_TOO_LARGE"

	defaultMaxFileSize = 10 * 1024 * 1024
)

// ImageValidator decides whether an upload may enter the workflow.
type ImageValidator struct {
	logger logger.Logger
	config *ValidatorConfig
}

// ValidatorConfig tunes the image validator.
type ValidatorConfig struct {
	MaxFileSize int64 // bytes
	// SniffContent rejects files whose content is recognizably a different
	// image format than the declared one.
	SniffContent bool
}

// ValidationResult collects every problem found in one file.
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	FileInfo FileInfo          `json:"fileInfo"`
}

// ValidationError is a rejected input. It never reaches the remote tier.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type FileInfo struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	MimeType    string `json:"mimeType"`
	SniffedType string `json:"sniffedType"`
	Extension   string `json:"extension"`
	Hash        string `json:"hash"`
}

// Err returns the first validation error, or nil when the file is valid.
func (r *ValidationResult) Err() error {
	if r == nil || r.IsValid || len(r.Errors) == 0 {
		return nil
	}
	e := r.Errors[0]
	return &e
}

func NewImageValidator(log logger.Logger, config *ValidatorConfig) *ImageValidator {
	if log == nil {
		log = logger.NewNop()
	}
	if config == nil {
		config = &ValidatorConfig{
			MaxFileSize:  defaultMaxFileSize,
			SniffContent: true,
		}
	}
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = defaultMaxFileSize
	}
	return &ImageValidator{
		logger: log.Named("validator"),
		config: config,
	}
}

// Validate checks an in-memory upload.
func (v *ImageValidator) Validate(name, mediaType string, data []byte) *ValidationResult {
	result := &ValidationResult{
		IsValid: true,
		Errors:  make([]ValidationError, 0),
		FileInfo: FileInfo{
			Filename:  name,
			Size:      int64(len(data)),
			MimeType:  normalizeMediaType(mediaType),
			Extension: strings.ToLower(filepath.Ext(name)),
		},
	}

	if data == nil {
		result.addError(CodeMissingFile, "No file was provided", "file")
		return result
	}
	if len(data) == 0 {
		result.addError(CodeEmptyFile, "File is empty", "file")
		return result
	}

	result.FileInfo.Hash = calculateHash(data)
	result.FileInfo.SniffedType = http.DetectContentType(data)

	if errs := v.validateMediaType(result.FileInfo); len(errs) > 0 {
		result.addErrors(errs)
	}
	if result.FileInfo.Size > v.config.MaxFileSize {
		result.addError(CodeFileTooLarge,
			fmt.Sprintf("File size exceeds maximum limit of %d bytes", v.config.MaxFileSize), "size")
	}

	if !result.IsValid {
		v.logger.Debug("Rejected upload",
			logger.String("filename", name),
			logger.String("mediaType", mediaType),
			logger.String("code", result.Errors[0].Code),
		)
	}
	return result
}

// Accept validates the upload and turns it into a SourceFile. The returned
// error is a *ValidationError.
func (v *ImageValidator) Accept(name, mediaType string, data []byte) (*models.SourceFile, error) {
	result := v.Validate(name, mediaType, data)
	if err := result.Err(); err != nil {
		return nil, err
	}
	return &models.SourceFile{
		Name:      name,
		MediaType: result.FileInfo.MimeType,
		Size:      result.FileInfo.Size,
		Data:      append([]byte(nil), data...),
		Hash:      result.FileInfo.Hash,
		AddedAt:   time.Now(),
	}, nil
}

// AcceptFile reads a multipart upload and accepts it. The declared type comes
// from the part header.
func (v *ImageValidator) AcceptFile(file *multipart.FileHeader) (*models.SourceFile, error) {
	if file == nil {
		return nil, &ValidationError{Code: CodeMissingFile, Message: "No file was provided", Field: "file"}
	}
	if file.Size > v.config.MaxFileSize {
		return nil, &ValidationError{
			Code:    CodeFileTooLarge,
			Message: fmt.Sprintf("File size exceeds maximum limit of %d bytes", v.config.MaxFileSize),
			Field:   "size",
		}
	}

	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, v.config.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return v.Accept(file.Filename, file.Header.Get("Content-Type"), data)
}

// AcceptFiles accepts several uploads concurrently. Results keep the input
// order; a rejected file leaves a nil entry and its error at the same index.
func (v *ImageValidator) AcceptFiles(files []*multipart.FileHeader) ([]*models.SourceFile, []error) {
	accepted := make([]*models.SourceFile, len(files))
	errs := make([]error, len(files))
	var wg sync.WaitGroup

	for i, file := range files {
		wg.Add(1)
		go func(index int, file *multipart.FileHeader) {
			defer wg.Done()
			accepted[index], errs[index] = v.AcceptFile(file)
		}(i, file)
	}
	wg.Wait()

	return accepted, errs
}

func (v *ImageValidator) validateMediaType(info FileInfo) []ValidationError {
	if info.MimeType == "" {
		return []ValidationError{{
			Code:    CodeMissingMediaType,
			Message: "File has no media type",
			Field:   "mediaType",
		}}
	}
	if !strings.HasPrefix(info.MimeType, "image/") {
		return []ValidationError{{
			Code:    CodeInvalidMediaType,
			Message: fmt.Sprintf("Media type %s is not an image", info.MimeType),
			Field:   "mediaType",
		}}
	}

	// Only contradicted when sniffing recognizes another image format;
	// formats the sniffer cannot identify are trusted as declared.
	sniffed := normalizeMediaType(info.SniffedType)
	if v.config.SniffContent && strings.HasPrefix(sniffed, "image/") && sniffed != info.MimeType {
		return []ValidationError{{
			Code:    CodeMediaTypeMismatch,
			Message: fmt.Sprintf("Declared %s but content is %s", info.MimeType, sniffed),
			Field:   "mediaType",
		}}
	}
	return nil
}

func (r *ValidationResult) addError(code, message, field string) {
	r.addErrors([]ValidationError{{Code: code, Message: message, Field: field}})
}

func (r *ValidationResult) addErrors(errs []ValidationError) {
	r.IsValid = false
	r.Errors = append(r.Errors, errs...)
}

// normalizeMediaType lowercases, strips parameters and folds aliases.
func normalizeMediaType(mediaType string) string {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "image/x-png":
		return "image/png"
	}
	return mt
}

func calculateHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
