package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeliveryStatus is the lifecycle status of a delivery record
type DeliveryStatus string

// Delivery statuses. Delivered and Cancelled are terminal.
const (
	StatusPicking    DeliveryStatus = "Picking"
	StatusPickedUp   DeliveryStatus = "PickedUp"
	StatusDelivering DeliveryStatus = "Delivering"
	StatusDelivered  DeliveryStatus = "Delivered"
	StatusCancelled  DeliveryStatus = "Cancelled"
)

// IsTerminal reports whether no further transitions are permitted
func (s DeliveryStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Valid reports whether the status is one of the known lifecycle states
func (s DeliveryStatus) Valid() bool {
	switch s {
	case StatusPicking, StatusPickedUp, StatusDelivering, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Order statuses relevant to the warehouse reconciliation path
const (
	OrderStatusInWarehouse           = "Inwarehouse"
	OrderStatusPickedUpFromWarehouse = "Pickedup_from_warehouse"
)

// DeliveryRecord represents the assignment of an order to a delivery agent.
// At most one record exists per order; cancellation is a terminal status,
// records are never deleted.
type DeliveryRecord struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
	OrderID            string         `gorm:"not null;uniqueIndex" json:"order_id"`
	DeliveryPersonID   string         `gorm:"not null" json:"delivery_person_id"`
	DeliveryPersonName string         `gorm:"not null" json:"delivery_person_name"`
	Status             DeliveryStatus `gorm:"not null" json:"status"`
	PickedUpAt         *time.Time     `json:"picked_up_at"`
	DeliveredAt        *time.Time     `json:"delivered_at"`
	CancelReason       *string        `json:"cancel_reason"`
}

// Warehouse event types carried on the inbound queues
const (
	EventOrderCreated       = "ORDER_CREATED"
	EventOrderStatusUpdated = "ORDER_STATUS_UPDATED"
	EventOrderCancelled     = "ORDER_CANCELLED"
)

// WarehouseEvent is the inbound envelope for order lifecycle events.
// It is immutable and exists only for the duration of processing.
type WarehouseEvent struct {
	EventType      string `json:"eventType"`
	OrderID        string `json:"orderId"`
	OrderNumber    string `json:"orderNumber"`
	TrackingNumber string `json:"trackingNumber"`
	SenderName     string `json:"senderName,omitempty"`
	ReceiverName   string `json:"receiverName,omitempty"`
	OrderStatus    string `json:"orderStatus,omitempty"`
	PreviousStatus string `json:"previousStatus,omitempty"`
	NewStatus      string `json:"newStatus,omitempty"`
	Location       string `json:"location,omitempty"`
	CancelReason   string `json:"cancelReason,omitempty"`
	Timestamp      string `json:"timestamp,omitempty"`
}

// WarehouseDetails describes the warehouse-side receipt of an order
type WarehouseDetails struct {
	Location   string `json:"location"`
	ReceivedBy string `json:"receivedBy"`
	ReceivedAt string `json:"receivedAt"`
}

// WarehouseNotification is the outbound "order reached warehouse" message
type WarehouseNotification struct {
	EventType      string           `json:"eventType"`
	OrderID        string           `json:"orderId"`
	TrackingNumber string           `json:"trackingNumber,omitempty"`
	Timestamp      string           `json:"timestamp"`
	Source         string           `json:"source"`
	Status         string           `json:"status"`
	Message        string           `json:"message"`
	Warehouse      WarehouseDetails `json:"warehouse"`
}

// SetupModels runs database migrations for all models
func SetupModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&DeliveryRecord{},
	)
}
