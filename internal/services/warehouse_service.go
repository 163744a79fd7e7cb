package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/logitrack/services/warehouse/internal/cache"
	"example.com/logitrack/services/warehouse/internal/history"
	"example.com/logitrack/services/warehouse/internal/metrics"
	"example.com/logitrack/services/warehouse/internal/models"
	"example.com/logitrack/services/warehouse/internal/ordersystem"
	"example.com/logitrack/services/warehouse/internal/protocol"
	"example.com/logitrack/services/warehouse/internal/tracing"
	"example.com/logitrack/services/warehouse/internal/wms"
)

const (
	notificationTTL = 24 * time.Hour
	orderCacheTTL   = 5 * time.Minute
)

// WarehouseService orchestrates order lifecycle events: format the wire
// message, deliver it to the WMS, record the outcome, and for warehouse
// arrivals reconcile the status back into the order system.
type WarehouseService struct {
	transport       wms.Transport
	orderClient     ordersystem.Client
	notifier        messagingPublisher
	historyStore    *history.Store
	cache           *cache.RedisCache
	metrics         *metrics.Metrics
	tracer          tracing.Tracer
	processingDelay time.Duration
	sleep           func(ctx context.Context, d time.Duration) error
}

// messagingPublisher is the slice of messaging.Publisher this service needs
type messagingPublisher interface {
	Publish(ctx context.Context, body interface{}, sessionID string) error
}

// NewWarehouseService creates the warehouse event handler
func NewWarehouseService(
	transport wms.Transport,
	orderClient ordersystem.Client,
	notifier messagingPublisher,
	historyStore *history.Store,
	redisCache *cache.RedisCache,
	collector *metrics.Metrics,
	tracer tracing.Tracer,
	processingDelay time.Duration,
) *WarehouseService {
	return &WarehouseService{
		transport:       transport,
		orderClient:     orderClient,
		notifier:        notifier,
		historyStore:    historyStore,
		cache:           redisCache,
		metrics:         collector,
		tracer:          tracer,
		processingDelay: processingDelay,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-time.After(d):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

// HandleOrderCreated delivers a NEW_ORDER message to the WMS
func (s *WarehouseService) HandleOrderCreated(ctx context.Context, event models.WarehouseEvent) error {
	txn := s.tracer.StartTransaction("handle-order-created")
	defer s.tracer.EndTransaction(txn)
	s.tracer.AddAttribute(txn, "order_id", event.OrderID)

	message := protocol.NewOrder(event)
	_, err := s.sendToWMS(ctx, event, protocol.TypeNewOrder, message, event.OrderID)
	if err != nil {
		s.tracer.RecordError(txn, err)
	}
	return err
}

// HandleOrderCancelled delivers an ORDER_CANCEL message to the WMS
func (s *WarehouseService) HandleOrderCancelled(ctx context.Context, event models.WarehouseEvent) error {
	txn := s.tracer.StartTransaction("handle-order-cancelled")
	defer s.tracer.EndTransaction(txn)
	s.tracer.AddAttribute(txn, "order_id", event.OrderID)

	message := protocol.OrderCancel(event)
	_, err := s.sendToWMS(ctx, event, protocol.TypeOrderCancel, message, event.OrderID)
	if err != nil {
		s.tracer.RecordError(txn, err)
	}
	return err
}

// HandleOrderStatusUpdated delivers an ORDER_UPDATE message and, for
// warehouse-relevant statuses, runs the reconciliation path
func (s *WarehouseService) HandleOrderStatusUpdated(ctx context.Context, event models.WarehouseEvent) error {
	txn := s.tracer.StartTransaction("handle-order-status-updated")
	defer s.tracer.EndTransaction(txn)
	s.tracer.AddAttribute(txn, "order_id", event.OrderID)
	s.tracer.AddAttribute(txn, "new_status", event.NewStatus)

	message := protocol.OrderUpdate(event)
	key := history.CompositeKey(event.OrderID, event.NewStatus)
	_, err := s.sendToWMS(ctx, event, protocol.TypeOrderUpdate, message, key)
	if err != nil {
		// Processing for this message ends here; no further side effects
		s.tracer.RecordError(txn, err)
		return err
	}

	switch event.NewStatus {
	case models.OrderStatusInWarehouse:
		return s.reconcileWarehouseArrival(ctx, event)
	case models.OrderStatusPickedUpFromWarehouse:
		return s.assignFromWarehouse(ctx, event)
	}
	return nil
}

// sendToWMS formats, sends and records one message. A transport failure is
// recorded and surfaced; there is no dead-letter mechanism for this leg, so
// the failure is logged as requiring manual intervention.
func (s *WarehouseService) sendToWMS(ctx context.Context, event models.WarehouseEvent, msgType, message, key string) (*wms.SendResult, error) {
	correlationID := uuid.New().String()

	result, err := s.transport.Send(ctx, message, correlationID)
	if err != nil {
		entry := history.Entry{
			OrderID:      event.OrderID,
			Key:          key,
			Type:         msgType,
			Message:      message,
			Success:      false,
			ResponseCode: "TRANSPORT_FAILURE",
		}
		var terr *wms.TransportError
		if errors.As(err, &terr) {
			entry.Attempts = terr.Attempts
		}
		s.historyStore.Record(entry)
		s.metrics.IncrementCounter(metrics.TransportFailures)

		log.Error().
			Err(err).
			Str("order_id", event.OrderID).
			Str("message_type", msgType).
			Msg("WMS delivery failed after all attempts, requires manual intervention")

		return nil, err
	}

	s.historyStore.Record(history.Entry{
		OrderID:      event.OrderID,
		Key:          key,
		Type:         msgType,
		Message:      message,
		Success:      true,
		ResponseCode: result.Response,
		Attempts:     result.Attempts,
	})

	return result, nil
}

// reconcileWarehouseArrival publishes the reached-warehouse notification and
// confirms the status in the order system after the modeled WMS processing
// delay. Confirmation failures are logged, not retried, and never re-attempt
// the notification.
func (s *WarehouseService) reconcileWarehouseArrival(ctx context.Context, event models.WarehouseEvent) error {
	now := time.Now().UTC().Format(time.RFC3339)

	claimed, err := s.cache.SetNX(ctx, cache.NotificationKey(event.OrderID), notificationTTL)
	if err != nil {
		// Fail open: a broken idempotency guard must not suppress the
		// notification, duplicates are tolerable downstream
		log.Warn().Err(err).Str("order_id", event.OrderID).Msg("Idempotency guard unavailable")
		claimed = true
	}

	if claimed {
		location := event.Location
		if location == "" {
			location = protocol.SentinelUnknown
		}
		notification := models.WarehouseNotification{
			EventType:      "ORDER_REACHED_WAREHOUSE",
			OrderID:        event.OrderID,
			TrackingNumber: event.TrackingNumber,
			Timestamp:      now,
			Source:         "warehouse-adapter",
			Status:         "inwarehouse",
			Message:        "Order received at warehouse",
			Warehouse: models.WarehouseDetails{
				Location:   location,
				ReceivedBy: event.ReceiverName,
				ReceivedAt: now,
			},
		}

		if err := s.notifier.Publish(ctx, notification, event.OrderID); err != nil {
			log.Error().Err(err).Str("order_id", event.OrderID).Msg("Failed to publish warehouse notification")
		} else {
			s.metrics.IncrementCounter(metrics.NotificationsPublished)
			log.Info().Str("order_id", event.OrderID).Msg("Warehouse arrival notification published")
		}
	} else {
		log.Info().Str("order_id", event.OrderID).Msg("Warehouse notification already published, skipping")
	}

	// Modeled WMS processing delay before confirming back to the order system
	if err := s.sleep(ctx, s.processingDelay); err != nil {
		return err
	}

	err = s.orderClient.UpdateOrderStatus(ctx, event.OrderID, ordersystem.StatusUpdate{
		NewStatus:       models.OrderStatusInWarehouse,
		StatusChangedBy: "warehouse-adapter",
		ChangeReason:    "confirmed arrival",
		Location:        event.Location,
	})
	if err != nil {
		s.metrics.IncrementCounter(metrics.ReconciliationFailures)
		log.Error().
			Err(err).
			Str("order_id", event.OrderID).
			Msg("Order system confirmation failed, requires manual intervention")
	}
	return nil
}

// assignFromWarehouse synthesizes a WAREHOUSE_ASSIGN message when the order
// is picked up from the warehouse. No order-system callback on this path.
func (s *WarehouseService) assignFromWarehouse(ctx context.Context, event models.WarehouseEvent) error {
	message := protocol.WarehouseAssign(event)
	key := history.CompositeKey(event.OrderID, protocol.TypeWarehouseAssign)
	_, err := s.sendToWMS(ctx, event, protocol.TypeWarehouseAssign, message, key)
	return err
}

// LookupOrder fetches an order from the order system, serving repeated
// lookups from cache for a short window
func (s *WarehouseService) LookupOrder(ctx context.Context, orderID string) (*ordersystem.Order, error) {
	if s.cache.Enabled() {
		var cached ordersystem.Order
		if err := s.cache.Get(ctx, cache.OrderKey(orderID), &cached); err == nil {
			return &cached, nil
		}
	}

	order, err := s.orderClient.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cache.OrderKey(orderID), order, orderCacheTTL); err != nil {
			log.Warn().Err(err).Str("order_id", orderID).Msg("Failed to cache order")
		}
	}
	return order, nil
}

// TestWMSConnection checks the WMS endpoint for the admin API
func (s *WarehouseService) TestWMSConnection(ctx context.Context) error {
	return s.transport.TestConnection(ctx)
}

// TestOrderSystemConnection checks the order system for the admin API
func (s *WarehouseService) TestOrderSystemConnection(ctx context.Context) error {
	return s.orderClient.TestConnection(ctx)
}

// History returns the recorded entries for an order
func (s *WarehouseService) History(orderID string) []history.Entry {
	return s.historyStore.ByOrder(orderID)
}

// Statistics summarizes recorded adapter activity
func (s *WarehouseService) Statistics() history.Statistics {
	return s.historyStore.GetStatistics()
}
