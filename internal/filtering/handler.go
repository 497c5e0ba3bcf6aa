package filtering

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sieve/internal/constants"
	"sieve/internal/logger"
	"sieve/pkg/errors"
)

var errBodyTooLarge = errors.NewError("REQUEST_TOO_LARGE", "request body too large", http.StatusRequestEntityTooLarge)

type Handler struct {
	Service *Service
	Logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{
		Service: service,
		Logger:  log,
	}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	} else {
		h.Logger.InfowCtx(c.Request.Context(), "Request rejected", "error", err, "path", c.Request.URL.Path)
	}

	c.JSON(status, errors.ToErrorResponse(err))
}

// bindJSON keeps the error code of a filter definition that failed to decode.
func (h *Handler) bindJSON(c *gin.Context, obj interface{}) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		h.HandleError(c, errBodyTooLarge.WithDetail("limit_bytes", tooLarge.Limit))
		return false
	}

	h.HandleError(c, errors.Wrap(err, errors.ErrValidation))
	return false
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/filter", h.Evaluate)

		filters := v1.Group("/filters")
		{
			filters.GET("", h.ListFilters)
			filters.POST("", h.CreateFilter)
			filters.GET("/:id", h.GetFilter)
			filters.PUT("/:id", h.UpdateFilter)
			filters.DELETE("/:id", h.DeleteFilter)
			filters.POST("/:id/apply", h.ApplyFilter)
		}
	}
}

// Evaluate filters the request messages with an ad-hoc filter and returns the
// matching ones in input order.
func (h *Handler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.Service.Evaluate(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListFilters(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))
	offset := parseOffset(c.Query("offset"))

	filters, err := h.Service.ListFilters(c.Request.Context(), limit, offset)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListFiltersResponse{Filters: filters, Limit: limit, Offset: offset})
}

// CreateFilter validates the definition before storing it.
func (h *Handler) CreateFilter(c *gin.Context) {
	var req CreateFilterRequest
	if !h.bindJSON(c, &req) {
		return
	}

	f, err := h.Service.CreateFilter(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (h *Handler) GetFilter(c *gin.Context) {
	f, err := h.Service.GetFilter(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// UpdateFilter changes only the fields present in the body.
func (h *Handler) UpdateFilter(c *gin.Context) {
	var req UpdateFilterRequest
	if !h.bindJSON(c, &req) {
		return
	}

	f, err := h.Service.UpdateFilter(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *Handler) DeleteFilter(c *gin.Context) {
	if err := h.Service.DeleteFilter(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ApplyFilter runs a saved filter over the request messages.
func (h *Handler) ApplyFilter(c *gin.Context) {
	var req ApplyRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.Service.Apply(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func parseLimit(limitStr string) int {
	if limitStr == "" {
		return constants.DefaultLimit
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 || parsed > constants.MaxLimit {
		return constants.DefaultLimit
	}
	return parsed
}

func parseOffset(offsetStr string) int {
	parsed, err := strconv.Atoi(offsetStr)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}
