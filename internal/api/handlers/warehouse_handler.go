package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"example.com/logitrack/services/warehouse/internal/ordersystem"
	"example.com/logitrack/services/warehouse/internal/services"
	"example.com/logitrack/services/warehouse/internal/tracing"
)

// WarehouseHandler serves the adapter's read/admin endpoints
type WarehouseHandler struct {
	service *services.WarehouseService
	tracer  tracing.Tracer
}

// NewWarehouseHandler creates a new warehouse handler
func NewWarehouseHandler(service *services.WarehouseService, tracer tracing.Tracer) *WarehouseHandler {
	return &WarehouseHandler{
		service: service,
		tracer:  tracer,
	}
}

// GetStatus reports adapter status: connectivity and activity summary
func (h *WarehouseHandler) GetStatus(c *gin.Context) {
	wmsErr := h.service.TestWMSConnection(c.Request.Context())
	orderErr := h.service.TestOrderSystemConnection(c.Request.Context())

	status := gin.H{
		"wms_connected":          wmsErr == nil,
		"order_system_connected": orderErr == nil,
		"statistics":             h.service.Statistics(),
	}
	if wmsErr != nil {
		status["wms_error"] = wmsErr.Error()
	}
	if orderErr != nil {
		status["order_system_error"] = orderErr.Error()
	}

	c.JSON(http.StatusOK, status)
}

// GetHistory returns the recorded message history for an order
func (h *WarehouseHandler) GetHistory(c *gin.Context) {
	orderID := c.Param("orderId")

	entries := h.service.History(orderID)
	if len(entries) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no history for order", "order_id": orderID})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "entries": entries})
}

// GetOrder proxies an order lookup to the order system, with caching
func (h *WarehouseHandler) GetOrder(c *gin.Context) {
	orderID := c.Param("orderId")

	order, err := h.service.LookupOrder(c.Request.Context(), orderID)
	if err != nil {
		var httpErr *ordersystem.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found", "order_id": orderID})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, order)
}

// GetStatistics returns aggregate adapter statistics
func (h *WarehouseHandler) GetStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Statistics())
}

// TestConnections probes the WMS and order system endpoints
func (h *WarehouseHandler) TestConnections(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-test-connections")
	defer h.tracer.EndTransaction(txn)

	result := gin.H{}

	if err := h.service.TestWMSConnection(c.Request.Context()); err != nil {
		h.tracer.RecordError(txn, err)
		result["wms"] = gin.H{"ok": false, "error": err.Error()}
	} else {
		result["wms"] = gin.H{"ok": true}
	}

	if err := h.service.TestOrderSystemConnection(c.Request.Context()); err != nil {
		h.tracer.RecordError(txn, err)
		result["order_system"] = gin.H{"ok": false, "error": err.Error()}
	} else {
		result["order_system"] = gin.H{"ok": true}
	}

	c.JSON(http.StatusOK, result)
}

// RegisterRoutes registers the handler's routes
func (h *WarehouseHandler) RegisterRoutes(router *gin.Engine) {
	warehouse := router.Group("/warehouse")
	{
		warehouse.GET("/status", h.GetStatus)
		warehouse.GET("/history/:orderId", h.GetHistory)
		warehouse.GET("/orders/:orderId", h.GetOrder)
		warehouse.GET("/statistics", h.GetStatistics)
		warehouse.GET("/test-connection", h.TestConnections)
	}
}
