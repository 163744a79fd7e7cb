package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/logitrack/services/warehouse/internal/delivery"
	"example.com/logitrack/services/warehouse/internal/models"
)

// DeliveryHandler exposes the delivery status engine: record creation on
// order assignment and validated status transitions
type DeliveryHandler struct {
	engine *delivery.Engine
}

// NewDeliveryHandler creates a new delivery handler
func NewDeliveryHandler(engine *delivery.Engine) *DeliveryHandler {
	return &DeliveryHandler{engine: engine}
}

// AssignRequest creates a delivery record for an order
type AssignRequest struct {
	OrderID            string `json:"orderId" binding:"required"`
	DeliveryPersonID   string `json:"deliveryPersonId" binding:"required"`
	DeliveryPersonName string `json:"deliveryPersonName" binding:"required"`
}

// TransitionRequest moves a delivery to a new status
type TransitionRequest struct {
	NewStatus string `json:"newStatus" binding:"required"`
}

// CancelRequest cancels a delivery
type CancelRequest struct {
	Reason string `json:"reason"`
}

// Assign handles POST /deliveries
func (h *DeliveryHandler) Assign(c *gin.Context) {
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.engine.Assign(c.Request.Context(), req.OrderID, req.DeliveryPersonID, req.DeliveryPersonName)
	if err != nil {
		log.Error().Err(err).Str("order_id", req.OrderID).Msg("Failed to create delivery record")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, record)
}

// Get handles GET /deliveries/:orderId
func (h *DeliveryHandler) Get(c *gin.Context) {
	record, err := h.engine.Get(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Transition handles PATCH /deliveries/:orderId/status
func (h *DeliveryHandler) Transition(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.engine.Transition(c.Request.Context(), c.Param("orderId"), models.DeliveryStatus(req.NewStatus))
	if err != nil {
		h.writeEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// Cancel handles POST /deliveries/:orderId/cancel
func (h *DeliveryHandler) Cancel(c *gin.Context) {
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.engine.Cancel(c.Request.Context(), c.Param("orderId"), req.Reason)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// writeEngineError maps engine domain errors onto HTTP status codes
func (h *DeliveryHandler) writeEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, delivery.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, delivery.ErrAlreadyTerminal),
		errors.Is(err, delivery.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, delivery.ErrUnknownStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Msg("Delivery engine error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// RegisterRoutes registers the handler's routes
func (h *DeliveryHandler) RegisterRoutes(router *gin.Engine) {
	deliveries := router.Group("/deliveries")
	{
		deliveries.POST("", h.Assign)
		deliveries.GET("/:orderId", h.Get)
		deliveries.PATCH("/:orderId/status", h.Transition)
		deliveries.POST("/:orderId/cancel", h.Cancel)
	}
}
