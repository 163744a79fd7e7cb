package wms

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// simPeer simulates the legacy WMS for local development: randomized
// latency, occasional NACK. Pluggable in place of the real socket peer.
type simPeer struct {
	mu          sync.Mutex
	rng         *rand.Rand
	failureRate float64
	minLatency  time.Duration
	maxLatency  time.Duration
}

// NewSimPeer creates a simulated peer with a 10% failure rate
func NewSimPeer() Peer {
	return &simPeer{
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		failureRate: 0.1,
		minLatency:  50 * time.Millisecond,
		maxLatency:  200 * time.Millisecond,
	}
}

// Exchange simulates a send with random latency and occasional failure
func (p *simPeer) Exchange(ctx context.Context, message string) (string, error) {
	p.mu.Lock()
	latency := p.minLatency + time.Duration(p.rng.Int63n(int64(p.maxLatency-p.minLatency)))
	failed := p.rng.Float64() < p.failureRate
	p.mu.Unlock()

	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if failed {
		return "", errors.New("simulated WMS failure")
	}
	return "ACK", nil
}

// Ping always succeeds for the simulated peer
func (p *simPeer) Ping(ctx context.Context) error {
	return nil
}
