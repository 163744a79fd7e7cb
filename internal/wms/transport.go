// Package wms owns delivery of formatted protocol messages to the warehouse
// management system, a legacy point-to-point TCP peer. The peer cannot be
// assumed to tolerate concurrent sessions, so callers hold one in-flight
// message at a time and the retry loop blocks until an outcome is known.
package wms

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/logitrack/services/warehouse/config"
)

// SendResult is the outcome of a successful send
type SendResult struct {
	Success       bool      `json:"success"`
	CorrelationID string    `json:"correlation_id"`
	Attempts      int       `json:"attempts"`
	Response      string    `json:"response"`
	Timestamp     time.Time `json:"timestamp"`
}

// TransportError is returned when all attempts are exhausted. It is surfaced
// to the caller, never swallowed; there is no dead-letter mechanism for this
// leg, so the handler logs it as requiring manual intervention.
type TransportError struct {
	CorrelationID string
	Attempts      int
	Err           error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("wms transport failed after %d attempts (correlation %s): %v",
		e.Attempts, e.CorrelationID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Peer performs one request/acknowledgement exchange with the WMS endpoint.
// Implementations: tcpPeer (real socket) and simPeer (simulated, for local
// development and tests).
type Peer interface {
	Exchange(ctx context.Context, message string) (string, error)
	Ping(ctx context.Context) error
}

// Transport delivers one formatted message to the WMS with bounded retry
type Transport interface {
	Send(ctx context.Context, message, correlationID string) (*SendResult, error)
	TestConnection(ctx context.Context) error
}

// sleepFunc delays between attempts; injected so tests run without real delays
type sleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Manager implements Transport with up to MaxAttempts exchanges separated by
// a fixed delay
type Manager struct {
	peer        Peer
	maxAttempts int
	retryDelay  time.Duration
	sleep       sleepFunc
}

// NewManager creates a transport manager over the given peer
func NewManager(peer Peer, cfg config.WMSConfig) *Manager {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	return &Manager{
		peer:        peer,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		sleep:       defaultSleep,
	}
}

// NewManagerFromConfig builds the manager with the peer variant selected by
// configuration: the simulated peer when wms.simulate is set, otherwise the
// real socket implementation.
func NewManagerFromConfig(cfg config.WMSConfig) *Manager {
	var peer Peer
	if cfg.Simulate {
		log.Info().Msg("WMS transport running against simulated peer")
		peer = NewSimPeer()
	} else {
		peer = NewTCPPeer(cfg)
	}
	return NewManager(peer, cfg)
}

// Send delivers the message, retrying failed exchanges up to the configured
// maximum. A valid acknowledgement is a single line containing ACK or OK;
// anything else is a protocol violation and counts as attempt failure.
func (m *Manager) Send(ctx context.Context, message, correlationID string) (*SendResult, error) {
	var lastErr error

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		response, err := m.peer.Exchange(ctx, message)
		if err == nil {
			if !validAck(response) {
				err = errors.Errorf("protocol violation: unexpected response %q", response)
			} else {
				log.Debug().
					Str("correlation_id", correlationID).
					Int("attempt", attempt).
					Str("response", response).
					Msg("WMS acknowledged message")

				return &SendResult{
					Success:       true,
					CorrelationID: correlationID,
					Attempts:      attempt,
					Response:      "ACK_RECEIVED",
					Timestamp:     time.Now().UTC(),
				}, nil
			}
		}

		lastErr = err
		log.Warn().
			Err(err).
			Str("correlation_id", correlationID).
			Int("attempt", attempt).
			Int("max_attempts", m.maxAttempts).
			Msg("WMS send attempt failed")

		if attempt < m.maxAttempts {
			if serr := m.sleep(ctx, m.retryDelay); serr != nil {
				return nil, &TransportError{
					CorrelationID: correlationID,
					Attempts:      attempt,
					Err:           serr,
				}
			}
		}
	}

	return nil, &TransportError{
		CorrelationID: correlationID,
		Attempts:      m.maxAttempts,
		Err:           lastErr,
	}
}

// TestConnection checks that the WMS endpoint is reachable
func (m *Manager) TestConnection(ctx context.Context) error {
	return m.peer.Ping(ctx)
}

func validAck(response string) bool {
	if len(response) >= 3 && response[:3] == "ACK" {
		return true
	}
	return len(response) >= 2 && response[:2] == "OK"
}
