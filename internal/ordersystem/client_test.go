package ordersystem

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/logitrack/services/warehouse/config"
)

func TestUpdateOrderStatus(t *testing.T) {
	var gotMethod, gotPath string
	var gotUpdate StatusUpdate

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotUpdate))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(config.OrderSystemConfig{BaseURL: server.URL})

	err := c.UpdateOrderStatus(context.Background(), "O1", StatusUpdate{
		NewStatus:       "Inwarehouse",
		StatusChangedBy: "warehouse-adapter",
		ChangeReason:    "confirmed arrival",
		Location:        "Dock 4",
	})

	require.NoError(t, err)
	require.Equal(t, http.MethodPatch, gotMethod)
	require.Equal(t, "/orders/O1/status", gotPath)
	require.Equal(t, "Inwarehouse", gotUpdate.NewStatus)
	require.Equal(t, "confirmed arrival", gotUpdate.ChangeReason)
}

func TestUpdateOrderStatusNonSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "order not found", http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(config.OrderSystemConfig{BaseURL: server.URL})

	err := c.UpdateOrderStatus(context.Background(), "O404", StatusUpdate{NewStatus: "Inwarehouse"})

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

func TestGetOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/orders/order/O1", r.URL.Path)
		json.NewEncoder(w).Encode(Order{
			OrderID:        "O1",
			OrderNumber:    "ORD-1001",
			TrackingNumber: "TRK-555",
			Status:         "Inwarehouse",
		})
	}))
	defer server.Close()

	c := NewClient(config.OrderSystemConfig{BaseURL: server.URL})

	order, err := c.GetOrder(context.Background(), "O1")

	require.NoError(t, err)
	require.Equal(t, "ORD-1001", order.OrderNumber)
	require.Equal(t, "Inwarehouse", order.Status)
}

func TestTestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(config.OrderSystemConfig{BaseURL: server.URL})

	require.NoError(t, c.TestConnection(context.Background()))
}
