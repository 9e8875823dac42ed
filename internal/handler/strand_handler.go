package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AllenCortuna/omnhs-api/internal/models"
	"github.com/AllenCortuna/omnhs-api/internal/service"
	appErrors "github.com/AllenCortuna/omnhs-api/pkg/errors"
	"github.com/AllenCortuna/omnhs-api/pkg/response"
)

// StrandHandler exposes strand endpoints.
type StrandHandler struct {
	strands *service.StrandService
}

// NewStrandHandler constructs StrandHandler.
func NewStrandHandler(strands *service.StrandService) *StrandHandler {
	return &StrandHandler{strands: strands}
}

// List godoc
// @Summary List strands
// @Tags Strands
// @Produce json
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /strands [get]
func (h *StrandHandler) List(c *gin.Context) {
	var filter models.StrandFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	strands, pagination, err := h.strands.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, strands, pagination)
}

// Get godoc
// @Summary Get strand detail
// @Tags Strands
// @Produce json
// @Param id path string true "Strand ID"
// @Success 200 {object} response.Envelope
// @Router /strands/{id} [get]
func (h *StrandHandler) Get(c *gin.Context) {
	strand, err := h.strands.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, strand, nil)
}

// Create godoc
// @Summary Create strand
// @Tags Strands
// @Accept json
// @Produce json
// @Param payload body service.StrandRequest true "Strand payload"
// @Success 201 {object} response.Envelope
// @Router /strands [post]
func (h *StrandHandler) Create(c *gin.Context) {
	var req service.StrandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	strand, err := h.strands.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, strand)
}

// Update godoc
// @Summary Update strand
// @Tags Strands
// @Accept json
// @Produce json
// @Param id path string true "Strand ID"
// @Param payload body service.StrandRequest true "Strand payload"
// @Success 200 {object} response.Envelope
// @Router /strands/{id} [put]
func (h *StrandHandler) Update(c *gin.Context) {
	var req service.StrandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	strand, err := h.strands.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, strand, nil)
}

// Delete godoc
// @Summary Delete strand
// @Tags Strands
// @Produce json
// @Param id path string true "Strand ID"
// @Success 204
// @Router /strands/{id} [delete]
func (h *StrandHandler) Delete(c *gin.Context) {
	if err := h.strands.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
