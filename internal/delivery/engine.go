// Package delivery validates and persists state transitions for delivery
// records tied to orders.
package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/logitrack/services/warehouse/internal/models"
	"example.com/logitrack/services/warehouse/internal/repository"
)

// Domain errors, surfaced to callers as typed failures
var (
	ErrNotFound          = errors.New("no delivery record exists for order")
	ErrInvalidTransition = errors.New("invalid delivery status transition")
	ErrAlreadyTerminal   = errors.New("delivery is already in a terminal status")
	ErrUnknownStatus     = errors.New("unknown delivery status")
)

// transitions is the allowed-successor table. Delivered and Cancelled are
// terminal and have no successors.
var transitions = map[models.DeliveryStatus][]models.DeliveryStatus{
	models.StatusPicking:    {models.StatusPickedUp, models.StatusDelivering, models.StatusDelivered, models.StatusCancelled},
	models.StatusPickedUp:   {models.StatusDelivering, models.StatusDelivered, models.StatusCancelled},
	models.StatusDelivering: {models.StatusDelivered, models.StatusCancelled},
	models.StatusDelivered:  {},
	models.StatusCancelled:  {},
}

func allowed(from, to models.DeliveryStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Engine is the delivery status state machine over persisted records
type Engine struct {
	repo repository.DeliveryRepository
}

// NewEngine creates a delivery status engine
func NewEngine(repo repository.DeliveryRepository) *Engine {
	return &Engine{repo: repo}
}

// Assign creates the delivery record for an order. Called when an order is
// assigned to a delivery agent; at most one record exists per order.
func (e *Engine) Assign(ctx context.Context, orderID, personID, personName string) (*models.DeliveryRecord, error) {
	record := &models.DeliveryRecord{
		ID:                 uuid.New(),
		OrderID:            orderID,
		DeliveryPersonID:   personID,
		DeliveryPersonName: personName,
		Status:             models.StatusPicking,
	}
	if err := e.repo.Create(ctx, record); err != nil {
		return nil, err
	}

	log.Info().
		Str("order_id", orderID).
		Str("delivery_person", personName).
		Msg("Delivery record created")

	return record, nil
}

// Get loads the delivery record for an order
func (e *Engine) Get(ctx context.Context, orderID string) (*models.DeliveryRecord, error) {
	record, err := e.repo.FindByOrderID(ctx, orderID)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return record, err
}

// Transition moves the delivery to newStatus if the state machine allows it.
// The status write and its side-effect timestamp (pickedUpAt on PickedUp,
// deliveredAt on Delivered, each set exactly once) are persisted atomically.
func (e *Engine) Transition(ctx context.Context, orderID string, newStatus models.DeliveryStatus) (*models.DeliveryRecord, error) {
	if !newStatus.Valid() {
		return nil, errors.Wrapf(ErrUnknownStatus, "%q", newStatus)
	}

	var updated *models.DeliveryRecord
	err := e.repo.WithTransaction(ctx, func(txRepo repository.DeliveryRepository) error {
		record, err := txRepo.FindByOrderID(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if !allowed(record.Status, newStatus) {
			return errors.Wrapf(ErrInvalidTransition, "%s -> %s for order %s",
				record.Status, newStatus, orderID)
		}

		now := time.Now().UTC()
		record.Status = newStatus
		switch newStatus {
		case models.StatusPickedUp:
			record.PickedUpAt = &now
		case models.StatusDelivered:
			record.DeliveredAt = &now
		}

		if err := txRepo.Save(ctx, record); err != nil {
			return err
		}

		updated = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("order_id", orderID).
		Str("status", string(newStatus)).
		Msg("Delivery status updated")

	return updated, nil
}

// Cancel transitions the delivery to Cancelled, pre-rejecting terminal
// records with ErrAlreadyTerminal rather than the generic transition error
func (e *Engine) Cancel(ctx context.Context, orderID, reason string) (*models.DeliveryRecord, error) {
	var updated *models.DeliveryRecord
	err := e.repo.WithTransaction(ctx, func(txRepo repository.DeliveryRepository) error {
		record, err := txRepo.FindByOrderID(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if record.Status.IsTerminal() {
			return errors.Wrapf(ErrAlreadyTerminal, "order %s is %s", orderID, record.Status)
		}

		record.Status = models.StatusCancelled
		record.CancelReason = &reason

		if err := txRepo.Save(ctx, record); err != nil {
			return err
		}

		updated = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("order_id", orderID).
		Str("reason", reason).
		Msg("Delivery cancelled")

	return updated, nil
}
