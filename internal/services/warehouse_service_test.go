package services

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"example.com/logitrack/services/warehouse/config"
	"example.com/logitrack/services/warehouse/internal/cache"
	"example.com/logitrack/services/warehouse/internal/history"
	"example.com/logitrack/services/warehouse/internal/metrics"
	"example.com/logitrack/services/warehouse/internal/models"
	"example.com/logitrack/services/warehouse/internal/ordersystem"
	"example.com/logitrack/services/warehouse/internal/tracing"
	"example.com/logitrack/services/warehouse/internal/wms"
)

// recorder tracks the order of observable side effects across mocks
type recorder struct {
	sequence []string
}

type fakeTransport struct {
	rec      *recorder
	fail     bool
	messages []string
}

func (t *fakeTransport) Send(ctx context.Context, message, correlationID string) (*wms.SendResult, error) {
	t.messages = append(t.messages, message)
	if t.fail {
		return nil, &wms.TransportError{
			CorrelationID: correlationID,
			Attempts:      3,
			Err:           errors.New("connection refused"),
		}
	}
	t.rec.sequence = append(t.rec.sequence, "wms:"+message)
	return &wms.SendResult{
		Success:       true,
		CorrelationID: correlationID,
		Attempts:      1,
		Response:      "ACK_RECEIVED",
		Timestamp:     time.Now().UTC(),
	}, nil
}

func (t *fakeTransport) TestConnection(ctx context.Context) error { return nil }

type fakeNotifier struct {
	rec       *recorder
	published []models.WarehouseNotification
}

func (n *fakeNotifier) Publish(ctx context.Context, body interface{}, sessionID string) error {
	notification := body.(models.WarehouseNotification)
	n.published = append(n.published, notification)
	n.rec.sequence = append(n.rec.sequence, "notify:"+notification.OrderID)
	return nil
}

type fakeOrderClient struct {
	rec     *recorder
	fail    bool
	updates []ordersystem.StatusUpdate
	order   *ordersystem.Order
	gets    int
}

func (c *fakeOrderClient) UpdateOrderStatus(ctx context.Context, orderID string, update ordersystem.StatusUpdate) error {
	c.updates = append(c.updates, update)
	c.rec.sequence = append(c.rec.sequence, "confirm:"+orderID)
	if c.fail {
		return &ordersystem.HTTPError{StatusCode: 503}
	}
	return nil
}

func (c *fakeOrderClient) GetOrder(ctx context.Context, orderID string) (*ordersystem.Order, error) {
	c.gets++
	if c.order == nil {
		return nil, &ordersystem.HTTPError{StatusCode: 404}
	}
	return c.order, nil
}

func (c *fakeOrderClient) TestConnection(ctx context.Context) error { return nil }

func newTestService(t *testing.T) (*WarehouseService, *recorder, *fakeTransport, *fakeNotifier, *fakeOrderClient, *history.Store) {
	t.Helper()
	rec := &recorder{}
	transport := &fakeTransport{rec: rec}
	notifier := &fakeNotifier{rec: rec}
	orderClient := &fakeOrderClient{rec: rec}
	store := history.NewStore(nil)

	// Disabled tracer and cache: no license key, no live Redis
	tracer, err := tracing.NewTracer(config.TracingConfig{})
	require.NoError(t, err)
	redisCache, err := cache.NewRedisCache(config.RedisConfig{Enabled: false})
	require.NoError(t, err)

	svc := NewWarehouseService(
		transport,
		orderClient,
		notifier,
		store,
		redisCache,
		metrics.NewMetrics(),
		tracer,
		0,
	)
	svc.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return svc, rec, transport, notifier, orderClient, store
}

func TestHandleOrderCreatedRecordsHistory(t *testing.T) {
	svc, _, transport, _, _, store := newTestService(t)

	event := models.WarehouseEvent{
		EventType:      models.EventOrderCreated,
		OrderID:        "O1",
		OrderNumber:    "ORD-1001",
		TrackingNumber: "TRK-555",
		SenderName:     "Acme Ltd",
		ReceiverName:   "Jane Smith",
		OrderStatus:    "Confirmed",
	}

	require.NoError(t, svc.HandleOrderCreated(context.Background(), event))

	require.Len(t, transport.messages, 1)
	require.Equal(t, "NEW_ORDER|ORD-1001|TRK-555|Acme Ltd|Jane Smith|Confirmed", transport.messages[0])

	entries := store.ByOrder("O1")
	require.Len(t, entries, 1)
	require.True(t, entries[0].Success)
	require.Equal(t, "NEW_ORDER", entries[0].Type)
}

func TestHandleOrderCreatedTransportFailure(t *testing.T) {
	svc, _, transport, notifier, orderClient, store := newTestService(t)
	transport.fail = true

	event := models.WarehouseEvent{
		EventType:   models.EventOrderCreated,
		OrderID:     "O1",
		OrderNumber: "ORD-1001",
	}

	err := svc.HandleOrderCreated(context.Background(), event)
	require.Error(t, err)

	entries := store.ByOrder("O1")
	require.Len(t, entries, 1)
	require.False(t, entries[0].Success)
	require.Equal(t, "TRANSPORT_FAILURE", entries[0].ResponseCode)
	require.Equal(t, 3, entries[0].Attempts)

	// No further side effects after a transport failure
	require.Empty(t, notifier.published)
	require.Empty(t, orderClient.updates)
}

func TestInwarehouseReconciliationOrdering(t *testing.T) {
	svc, rec, _, notifier, orderClient, store := newTestService(t)

	event := models.WarehouseEvent{
		EventType:      models.EventOrderStatusUpdated,
		OrderID:        "O1",
		OrderNumber:    "ORD-1001",
		TrackingNumber: "TRK-555",
		PreviousStatus: "Shipped",
		NewStatus:      models.OrderStatusInWarehouse,
		Location:       "Dock 4",
		ReceiverName:   "Jane Smith",
	}

	require.NoError(t, svc.HandleOrderStatusUpdated(context.Background(), event))

	// (1) history entry, (2) outbound notification, (3) order system call
	entries := store.ByOrder("O1")
	require.Len(t, entries, 1)
	require.Equal(t, history.CompositeKey("O1", "Inwarehouse"), entries[0].Key)

	require.Len(t, notifier.published, 1)
	require.Equal(t, "ORDER_REACHED_WAREHOUSE", notifier.published[0].EventType)
	require.Equal(t, "O1", notifier.published[0].OrderID)
	require.Equal(t, "Dock 4", notifier.published[0].Warehouse.Location)

	require.Len(t, orderClient.updates, 1)
	require.Equal(t, "Inwarehouse", orderClient.updates[0].NewStatus)
	require.Equal(t, "confirmed arrival", orderClient.updates[0].ChangeReason)

	require.Equal(t, []string{
		"wms:ORDER_UPDATE|ORD-1001|TRK-555|Shipped|Inwarehouse|Dock 4",
		"notify:O1",
		"confirm:O1",
	}, rec.sequence)
}

func TestReconciliationFailureIsSwallowed(t *testing.T) {
	svc, _, _, notifier, orderClient, _ := newTestService(t)
	orderClient.fail = true

	event := models.WarehouseEvent{
		EventType: models.EventOrderStatusUpdated,
		OrderID:   "O1",
		NewStatus: models.OrderStatusInWarehouse,
	}

	// HTTP confirmation failure is logged, not propagated, and the
	// notification is not re-attempted
	require.NoError(t, svc.HandleOrderStatusUpdated(context.Background(), event))
	require.Len(t, notifier.published, 1)
	require.Len(t, orderClient.updates, 1)
}

func TestPickedUpFromWarehouseSendsAssign(t *testing.T) {
	svc, _, transport, notifier, orderClient, _ := newTestService(t)

	event := models.WarehouseEvent{
		EventType:      models.EventOrderStatusUpdated,
		OrderID:        "O1",
		OrderNumber:    "ORD-1001",
		TrackingNumber: "TRK-555",
		NewStatus:      models.OrderStatusPickedUpFromWarehouse,
		Location:       "Nairobi East",
	}

	require.NoError(t, svc.HandleOrderStatusUpdated(context.Background(), event))

	require.Len(t, transport.messages, 2)
	require.Contains(t, transport.messages[0], "ORDER_UPDATE|")
	require.Equal(t, "WAREHOUSE_ASSIGN|ORD-1001|TRK-555|Nairobi East", transport.messages[1])

	// No order-system callback on this path
	require.Empty(t, orderClient.updates)
	require.Empty(t, notifier.published)
}

func TestHandlersRunWithFallbackTracer(t *testing.T) {
	// The serve command falls back to the disabled tracer when agent init
	// fails; event processing must work against it
	rec := &recorder{}
	transport := &fakeTransport{rec: rec}
	notifier := &fakeNotifier{rec: rec}
	orderClient := &fakeOrderClient{rec: rec}
	redisCache, err := cache.NewRedisCache(config.RedisConfig{Enabled: false})
	require.NoError(t, err)

	svc := NewWarehouseService(
		transport,
		orderClient,
		notifier,
		history.NewStore(nil),
		redisCache,
		metrics.NewMetrics(),
		tracing.NewDisabledTracer(),
		0,
	)

	event := models.WarehouseEvent{
		EventType:   models.EventOrderCreated,
		OrderID:     "O1",
		OrderNumber: "ORD-1001",
	}

	require.NotPanics(t, func() {
		require.NoError(t, svc.HandleOrderCreated(context.Background(), event))
	})
	require.Len(t, transport.messages, 1)
}

func TestLookupOrderDelegatesToOrderSystem(t *testing.T) {
	svc, _, _, _, orderClient, _ := newTestService(t)
	orderClient.order = &ordersystem.Order{OrderID: "O1", OrderNumber: "ORD-1001"}

	order, err := svc.LookupOrder(context.Background(), "O1")

	require.NoError(t, err)
	require.Equal(t, "ORD-1001", order.OrderNumber)
	require.Equal(t, 1, orderClient.gets)
}

func TestLookupOrderSurfacesUpstreamError(t *testing.T) {
	svc, _, _, _, _, _ := newTestService(t)

	_, err := svc.LookupOrder(context.Background(), "missing")

	var httpErr *ordersystem.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, 404, httpErr.StatusCode)
}

func TestHandleOrderCancelledUsesSentinelReason(t *testing.T) {
	svc, _, transport, _, _, _ := newTestService(t)

	event := models.WarehouseEvent{
		EventType:      models.EventOrderCancelled,
		OrderID:        "O1",
		OrderNumber:    "ORD-1001",
		TrackingNumber: "TRK-555",
	}

	require.NoError(t, svc.HandleOrderCancelled(context.Background(), event))
	require.Equal(t, "ORDER_CANCEL|ORD-1001|TRK-555|CANCELLED", transport.messages[0])
}
