package messaging

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"example.com/logitrack/services/warehouse/internal/metrics"
	"example.com/logitrack/services/warehouse/internal/models"
)

func TestProcessDispatchesByEventType(t *testing.T) {
	p := NewProcessor(metrics.NewMetrics())

	var got models.WarehouseEvent
	p.Register(models.EventOrderCreated, func(ctx context.Context, event models.WarehouseEvent) error {
		got = event
		return nil
	})

	body := []byte(`{"eventType":"ORDER_CREATED","orderId":"O1","orderNumber":"ORD-1001","trackingNumber":"TRK-555"}`)
	err := p.process(context.Background(), "order-events", body)

	require.NoError(t, err)
	require.Equal(t, "O1", got.OrderID)
	require.Equal(t, "ORD-1001", got.OrderNumber)
}

func TestProcessDropsMalformedEnvelope(t *testing.T) {
	p := NewProcessor(metrics.NewMetrics())

	called := false
	p.Register(models.EventOrderCreated, func(ctx context.Context, event models.WarehouseEvent) error {
		called = true
		return nil
	})

	err := p.process(context.Background(), "order-events", []byte(`{not json`))

	require.NoError(t, err)
	require.False(t, called)
}

func TestProcessDropsUnknownEventType(t *testing.T) {
	p := NewProcessor(metrics.NewMetrics())

	err := p.process(context.Background(), "order-events", []byte(`{"eventType":"ORDER_TELEPORTED","orderId":"O1"}`))

	require.NoError(t, err)
}

func TestProcessSwallowsHandlerErrors(t *testing.T) {
	p := NewProcessor(metrics.NewMetrics())

	p.Register(models.EventOrderCancelled, func(ctx context.Context, event models.WarehouseEvent) error {
		return errors.New("transport exhausted")
	})

	// A handler failure for one order must not requeue or crash the consumer
	err := p.process(context.Background(), "order-events", []byte(`{"eventType":"ORDER_CANCELLED","orderId":"O1"}`))

	require.NoError(t, err)
}
