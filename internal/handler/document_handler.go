package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AllenCortuna/omnhs-api/internal/service"
	appErrors "github.com/AllenCortuna/omnhs-api/pkg/errors"
	"github.com/AllenCortuna/omnhs-api/pkg/response"
)

// DocumentHandler accepts enrollment attachments and serves them back via
// signed tokens.
type DocumentHandler struct {
	documents *service.DocumentService
}

// NewDocumentHandler constructs DocumentHandler.
func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// Upload godoc
// @Summary Upload an enrollment attachment
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Attachment"
// @Success 201 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file field is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	doc, err := h.documents.Upload(fileHeader.Filename, fileHeader.Header.Get("Content-Type"), fileHeader.Size, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// Download godoc
// @Summary Download an attachment via signed token
// @Tags Documents
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200
// @Router /documents/{token} [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	file, err := h.documents.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Status(http.StatusOK)
	c.Header("Content-Type", "application/octet-stream")
	if _, err := io.Copy(c.Writer, file); err != nil {
		_ = c.Error(err)
	}
}

// Refresh godoc
// @Summary Re-sign an expired document token
// @Tags Documents
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /documents/refresh [post]
func (h *DocumentHandler) Refresh(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	token, expiresAt, err := h.documents.Refresh(req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"token": token, "expires_at": expiresAt}, nil)
}
