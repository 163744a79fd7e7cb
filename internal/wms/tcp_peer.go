package wms

import (
	"bufio"
	"context"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"

	"example.com/logitrack/services/warehouse/config"
)

// tcpPeer exchanges messages with the WMS over a short-lived TCP connection.
// The legacy peer speaks newline-terminated ASCII: one message line in, one
// acknowledgement line back, then the connection is closed.
type tcpPeer struct {
	address     string
	dialTimeout time.Duration
	ackTimeout  time.Duration
}

// NewTCPPeer creates the socket-backed peer
func NewTCPPeer(cfg config.WMSConfig) Peer {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	ackTimeout := cfg.AckTimeout
	if ackTimeout <= 0 {
		ackTimeout = 5 * time.Second
	}
	return &tcpPeer{
		address:     cfg.Address,
		dialTimeout: dialTimeout,
		ackTimeout:  ackTimeout,
	}
}

// Exchange opens a connection, writes the message and awaits a single-line
// acknowledgement before closing
func (p *tcpPeer) Exchange(ctx context.Context, message string) (string, error) {
	dialer := net.Dialer{Timeout: p.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return "", errors.Wrapf(err, "failed to connect to WMS at %s", p.address)
	}
	defer conn.Close()

	deadline := time.Now().Add(p.ackTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return "", errors.Wrap(err, "failed to set connection deadline")
	}

	if _, err := conn.Write([]byte(message + "\n")); err != nil {
		return "", errors.Wrap(err, "failed to write message to WMS")
	}

	response, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", errors.Wrap(err, "failed to read acknowledgement from WMS")
	}

	return strings.TrimSpace(response), nil
}

// Ping verifies the endpoint accepts connections
func (p *tcpPeer) Ping(ctx context.Context) error {
	dialer := net.Dialer{Timeout: p.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return errors.Wrapf(err, "WMS at %s is unreachable", p.address)
	}
	return conn.Close()
}
