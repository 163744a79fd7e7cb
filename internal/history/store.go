// Package history is the adapter's bounded audit log: an in-memory store of
// WMS message outcomes, queryable by order and summarized for the statistics
// endpoint. The single eviction mechanism is the periodic ClearOld sweep.
package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Entry is one recorded adapter activity. Entries are keyed by orderId, or by
// orderId+status for status updates so repeated transitions for the same
// order stay distinguishable.
type Entry struct {
	ID           string    `json:"id"`
	Key          string    `json:"key"`
	OrderID      string    `json:"order_id"`
	Type         string    `json:"type"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
	Success      bool      `json:"success"`
	ResponseCode string    `json:"response_code"`
	Attempts     int       `json:"attempts"`
}

// Statistics summarizes the store contents
type Statistics struct {
	TotalEntries  int            `json:"total_entries"`
	CountsByType  map[string]int `json:"counts_by_type"`
	SuccessRate   string         `json:"success_rate"`
	LastTimestamp *time.Time     `json:"last_timestamp"`
}

// Indexer mirrors entries into an external search backend, best-effort
type Indexer interface {
	IndexEntry(ctx context.Context, entry Entry) error
}

// indexQueueSize bounds how many entries may wait for search mirroring; a
// slow backend drops mirrors instead of accumulating goroutines or blocking
// message processing
const indexQueueSize = 256

// Store is the in-memory history map. It is written by the session consumers
// and read by the admin endpoints; since two inbound queues are consumed in
// parallel the map is guarded with a mutex rather than relying on a
// single-writer contract.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
	indexer Indexer
	indexCh chan Entry
	done    chan struct{}
}

// NewStore creates an empty history store. indexer may be nil; when set, a
// single worker mirrors entries into it off the write path.
func NewStore(indexer Indexer) *Store {
	s := &Store{
		entries: make(map[string]Entry),
		indexer: indexer,
	}
	if indexer != nil {
		s.indexCh = make(chan Entry, indexQueueSize)
		s.done = make(chan struct{})
		go s.indexLoop()
	}
	return s
}

// indexLoop drains the mirror queue until the store is closed
func (s *Store) indexLoop() {
	defer close(s.done)
	for entry := range s.indexCh {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.indexer.IndexEntry(ctx, entry); err != nil {
			log.Warn().Err(err).Str("key", entry.Key).Msg("Failed to index history entry")
		}
		cancel()
	}
}

// CompositeKey builds the orderId+status key used for status updates
func CompositeKey(orderID, status string) string {
	return fmt.Sprintf("%s:%s", orderID, status)
}

// Record stores an entry under its key, replacing any previous entry for the
// same key. A zero timestamp is filled with the current time.
func (s *Store) Record(entry Entry) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Key == "" {
		entry.Key = entry.OrderID
	}

	s.mu.Lock()
	s.entries[entry.Key] = entry
	s.mu.Unlock()

	if s.indexCh != nil {
		// Mirroring is best-effort and must never block message processing
		select {
		case s.indexCh <- entry:
		default:
			log.Warn().Str("key", entry.Key).Msg("Index queue full, dropping history mirror")
		}
	}
}

// ByOrder returns all entries recorded for the given order
func (s *Store) ByOrder(orderID string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []Entry
	for _, entry := range s.entries {
		if entry.OrderID == orderID {
			entries = append(entries, entry)
		}
	}
	return entries
}

// GetStatistics computes totals, per-type counts, the success rate and the
// most recent timestamp
func (s *Store) GetStatistics() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Statistics{
		TotalEntries: len(s.entries),
		CountsByType: make(map[string]int),
	}

	successes := 0
	var last time.Time
	for _, entry := range s.entries {
		stats.CountsByType[entry.Type]++
		if entry.Success {
			successes++
		}
		if entry.Timestamp.After(last) {
			last = entry.Timestamp
		}
	}

	if stats.TotalEntries > 0 {
		stats.SuccessRate = fmt.Sprintf("%.2f%%", float64(successes)/float64(stats.TotalEntries)*100)
		stats.LastTimestamp = &last
	} else {
		stats.SuccessRate = "0.00%"
	}

	return stats
}

// ClearOld deletes entries older than hoursToKeep and returns how many were
// removed
func (s *Store) ClearOld(hoursToKeep int) int {
	cutoff := time.Now().Add(-time.Duration(hoursToKeep) * time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if entry.Timestamp.Before(cutoff) {
			delete(s.entries, key)
			removed++
		}
	}

	if removed > 0 {
		log.Info().Int("removed", removed).Int("hours_kept", hoursToKeep).Msg("History entries evicted")
	}
	return removed
}

// Len returns the number of stored entries
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close drains queued mirror entries and stops the index worker. Record must
// not be called after Close.
func (s *Store) Close() {
	if s.indexCh == nil {
		return
	}
	close(s.indexCh)
	<-s.done
}
