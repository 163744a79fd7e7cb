package wms

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"example.com/logitrack/services/warehouse/config"
)

// scriptedPeer returns canned responses/errors per attempt
type scriptedPeer struct {
	responses []string
	errs      []error
	calls     int
}

func (p *scriptedPeer) Exchange(ctx context.Context, message string) (string, error) {
	i := p.calls
	p.calls++
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	return p.responses[i], p.errs[i]
}

func (p *scriptedPeer) Ping(ctx context.Context) error {
	return nil
}

func newTestManager(peer Peer, maxAttempts int) *Manager {
	m := NewManager(peer, config.WMSConfig{
		MaxAttempts: maxAttempts,
		RetryDelay:  2 * time.Second,
	})
	// No real delays in tests
	m.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return m
}

func TestSendSucceedsOnThirdAttempt(t *testing.T) {
	peer := &scriptedPeer{
		responses: []string{"", "", "ACK"},
		errs:      []error{errors.New("connection refused"), errors.New("connection refused"), nil},
	}
	m := newTestManager(peer, 3)

	result, err := m.Send(context.Background(), "NEW_ORDER|ORD-1|TRK-1|a|b|Confirmed", "corr-1")

	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 3, result.Attempts)
	require.Equal(t, "corr-1", result.CorrelationID)
	require.Equal(t, "ACK_RECEIVED", result.Response)
	require.False(t, result.Timestamp.IsZero())
}

func TestSendExhaustsAttempts(t *testing.T) {
	peer := &scriptedPeer{
		responses: []string{""},
		errs:      []error{errors.New("connection refused")},
	}
	m := newTestManager(peer, 3)

	result, err := m.Send(context.Background(), "ORDER_CANCEL|ORD-1|TRK-1|CANCELLED", "corr-2")

	require.Nil(t, result)
	require.Error(t, err)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, 3, terr.Attempts)
	require.Equal(t, "corr-2", terr.CorrelationID)
	require.Equal(t, 3, peer.calls)
}

func TestSendRejectsProtocolViolation(t *testing.T) {
	peer := &scriptedPeer{
		responses: []string{"WHAT"},
		errs:      []error{nil},
	}
	m := newTestManager(peer, 2)

	_, err := m.Send(context.Background(), "ORDER_UPDATE|ORD-1|TRK-1|NONE|Inwarehouse|UNKNOWN", "corr-3")

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, 2, terr.Attempts)
	require.Contains(t, terr.Err.Error(), "protocol violation")
}

func TestSendAcceptsOKResponse(t *testing.T) {
	peer := &scriptedPeer{
		responses: []string{"OK"},
		errs:      []error{nil},
	}
	m := newTestManager(peer, 3)

	result, err := m.Send(context.Background(), "WAREHOUSE_ASSIGN|ORD-1|TRK-1|Dock 4", "corr-4")

	require.NoError(t, err)
	require.Equal(t, 1, result.Attempts)
}

func TestSendStopsWhenContextCancelled(t *testing.T) {
	peer := &scriptedPeer{
		responses: []string{""},
		errs:      []error{errors.New("connection refused")},
	}
	m := NewManager(peer, config.WMSConfig{MaxAttempts: 3, RetryDelay: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Send(ctx, "msg", "corr-5")

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, 1, terr.Attempts)
}
