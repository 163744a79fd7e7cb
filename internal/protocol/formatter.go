// Package protocol formats domain events into the fixed-width, pipe-delimited
// wire messages understood by the legacy warehouse management system.
//
// Field values must not contain the '|' delimiter; the wire format performs
// no escaping and downstream consumers rely on a fixed field count per
// message type, so missing optional fields are substituted with sentinel
// tokens rather than omitted.
package protocol

import (
	"strings"

	"example.com/logitrack/services/warehouse/internal/models"
)

// Message type prefixes
const (
	TypeNewOrder        = "NEW_ORDER"
	TypeOrderUpdate     = "ORDER_UPDATE"
	TypeOrderCancel     = "ORDER_CANCEL"
	TypeWarehouseAssign = "WAREHOUSE_ASSIGN"
)

// Sentinel tokens for missing optional fields
const (
	SentinelNone      = "NONE"
	SentinelUnknown   = "UNKNOWN"
	SentinelCancelled = "CANCELLED"
)

const delimiter = "|"

// NewOrder formats an ORDER_CREATED event as a NEW_ORDER message:
// NEW_ORDER|orderNumber|trackingNumber|senderName|receiverName|orderStatus
func NewOrder(event models.WarehouseEvent) string {
	return join(
		TypeNewOrder,
		event.OrderNumber,
		event.TrackingNumber,
		event.SenderName,
		event.ReceiverName,
		event.OrderStatus,
	)
}

// OrderUpdate formats an ORDER_STATUS_UPDATED event as an ORDER_UPDATE message:
// ORDER_UPDATE|orderNumber|trackingNumber|previousStatus|newStatus|location
func OrderUpdate(event models.WarehouseEvent) string {
	previous := event.PreviousStatus
	if previous == "" {
		previous = SentinelNone
	}
	location := event.Location
	if location == "" {
		location = SentinelUnknown
	}
	return join(
		TypeOrderUpdate,
		event.OrderNumber,
		event.TrackingNumber,
		previous,
		event.NewStatus,
		location,
	)
}

// OrderCancel formats an ORDER_CANCELLED event as an ORDER_CANCEL message:
// ORDER_CANCEL|orderNumber|trackingNumber|cancelReason
func OrderCancel(event models.WarehouseEvent) string {
	reason := event.CancelReason
	if reason == "" {
		reason = SentinelCancelled
	}
	return join(
		TypeOrderCancel,
		event.OrderNumber,
		event.TrackingNumber,
		reason,
	)
}

// WarehouseAssign formats the internal warehouse assignment message:
// WAREHOUSE_ASSIGN|orderNumber|trackingNumber|warehouseLocation
func WarehouseAssign(event models.WarehouseEvent) string {
	location := event.Location
	if location == "" {
		location = SentinelUnknown
	}
	return join(
		TypeWarehouseAssign,
		event.OrderNumber,
		event.TrackingNumber,
		location,
	)
}

func join(fields ...string) string {
	return strings.Join(fields, delimiter)
}
