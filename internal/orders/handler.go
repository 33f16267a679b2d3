package orders

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"orderflow/internal/logger"
	"orderflow/pkg/errors"
)

type Handler struct {
	Service Service
	Logger  logger.Logger
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		ordersGroup := v1.Group("/orders")
		{
			ordersGroup.POST("", h.CreateOrder)
			ordersGroup.GET("", h.ListOrders)
			ordersGroup.GET("/:id", h.GetOrder)
		}

		admin := v1.Group("/admin/orders")
		{
			admin.POST("/:id/process", h.StartProcessing)
			admin.POST("/:id/ship", h.ShipOrder)
			admin.POST("/:id/deliver", h.DeliverOrder)
		}
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, errors.ErrValidationFailed.WithCause(err).WithMessage("invalid request body"))
		return
	}

	order, err := h.Service.CreateOrder(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.Service.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListOrders lists orders for one user (userId query parameter) or, for
// operators, by status.
func (h *Handler) ListOrders(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.handleError(c, errors.ErrValidationFailed.WithMessage("limit must be an integer"))
			return
		}
		limit = parsed
	}

	if status := c.Query("status"); status != "" {
		orders, err := h.Service.ListOrdersByStatus(c.Request.Context(), OrderStatus(status), limit)
		if err != nil {
			h.handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, orders)
		return
	}

	orders, err := h.Service.ListUserOrders(c.Request.Context(), c.Query("userId"), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) StartProcessing(c *gin.Context) {
	order, err := h.Service.StartProcessing(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type shipRequest struct {
	TrackingNumber string `json:"trackingNumber"`
}

func (h *Handler) ShipOrder(c *gin.Context) {
	var req shipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, errors.ErrValidationFailed.WithCause(err).WithMessage("invalid request body"))
		return
	}

	order, err := h.Service.ShipOrder(c.Request.Context(), c.Param("id"), req.TrackingNumber)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) DeliverOrder(c *gin.Context) {
	order, err := h.Service.DeliverOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
