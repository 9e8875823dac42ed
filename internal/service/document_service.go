package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/AllenCortuna/omnhs-api/pkg/errors"
	"github.com/AllenCortuna/omnhs-api/pkg/storage"
)

// DocumentConfig bounds what uploads are accepted.
type DocumentConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// UploadedDocument describes a stored enrollment attachment.
type UploadedDocument struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DocumentService stores enrollment attachments (clearance forms, grade
// copies) and hands out time-limited signed download tokens.
type DocumentService struct {
	store  *storage.LocalStorage
	signer *storage.SignedURLSigner
	config DocumentConfig
	logger *zap.Logger
}

// NewDocumentService constructs the document service.
func NewDocumentService(store *storage.LocalStorage, signer *storage.SignedURLSigner, config DocumentConfig, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxFileSizeBytes <= 0 {
		config.MaxFileSizeBytes = 5 << 20
	}
	if len(config.AllowedMIMEs) == 0 {
		config.AllowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png"}
	}
	return &DocumentService{store: store, signer: signer, config: config, logger: logger}
}

// Upload validates and persists an attachment, returning a signed URL the
// caller can embed in an enrollment submission.
func (s *DocumentService) Upload(filename, contentType string, size int64, r io.Reader) (*UploadedDocument, error) {
	if size > s.config.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.config.MaxFileSizeBytes))
	}
	if !s.mimeAllowed(contentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file type is not accepted")
	}

	documentID := uuid.NewString()
	ext := filepath.Ext(filename)
	relPath := filepath.Join(time.Now().UTC().Format("2006/01"), documentID+ext)

	if _, err := s.store.SaveStream(relPath, io.LimitReader(r, s.config.MaxFileSizeBytes)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}

	token, expiresAt, err := s.signer.Generate(documentID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign document url")
	}

	return &UploadedDocument{
		ID:        documentID,
		Filename:  filename,
		Path:      relPath,
		URL:       token,
		ExpiresAt: expiresAt,
	}, nil
}

// Open validates a signed token and returns the underlying file.
func (s *DocumentService) Open(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired document token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	return file, nil
}

// Refresh re-signs an existing stored document path, e.g. when a student
// reopens an old enrollment.
func (s *DocumentService) Refresh(token string) (string, time.Time, error) {
	documentID, relPath, _, err := s.signer.Parse(token, true)
	if err != nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrForbidden, "invalid document token")
	}
	fresh, expiresAt, err := s.signer.Generate(documentID, relPath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign document url")
	}
	return fresh, expiresAt, nil
}

func (s *DocumentService) mimeAllowed(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	for _, allowed := range s.config.AllowedMIMEs {
		if contentType == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}
