package history

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// collectingIndexer records indexed entries; release, when set, gates every
// IndexEntry call to simulate a slow search backend
type collectingIndexer struct {
	mu      sync.Mutex
	entries []Entry
	release chan struct{}
}

func (i *collectingIndexer) IndexEntry(ctx context.Context, entry Entry) error {
	if i.release != nil {
		<-i.release
	}
	i.mu.Lock()
	i.entries = append(i.entries, entry)
	i.mu.Unlock()
	return nil
}

func (i *collectingIndexer) count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.entries)
}

func TestRecordAndQueryByOrder(t *testing.T) {
	store := NewStore(nil)

	store.Record(Entry{OrderID: "O1", Type: "NEW_ORDER", Success: true})
	store.Record(Entry{
		OrderID: "O1",
		Key:     CompositeKey("O1", "Inwarehouse"),
		Type:    "ORDER_UPDATE",
		Success: true,
	})
	store.Record(Entry{OrderID: "O2", Type: "NEW_ORDER", Success: true})

	entries := store.ByOrder("O1")
	require.Len(t, entries, 2)

	entries = store.ByOrder("O2")
	require.Len(t, entries, 1)
}

func TestRepeatedStatusKeysAreDistinct(t *testing.T) {
	store := NewStore(nil)

	store.Record(Entry{OrderID: "O1", Key: CompositeKey("O1", "Inwarehouse"), Type: "ORDER_UPDATE"})
	store.Record(Entry{OrderID: "O1", Key: CompositeKey("O1", "Shipped"), Type: "ORDER_UPDATE"})

	require.Equal(t, 2, store.Len())
}

func TestGetStatistics(t *testing.T) {
	store := NewStore(nil)

	store.Record(Entry{OrderID: "O1", Type: "NEW_ORDER", Success: true})
	store.Record(Entry{OrderID: "O2", Type: "NEW_ORDER", Success: true})
	store.Record(Entry{OrderID: "O3", Type: "ORDER_CANCEL", Success: false})

	stats := store.GetStatistics()

	require.Equal(t, 3, stats.TotalEntries)
	require.Equal(t, "66.67%", stats.SuccessRate)
	require.Equal(t, 2, stats.CountsByType["NEW_ORDER"])
	require.Equal(t, 1, stats.CountsByType["ORDER_CANCEL"])
	require.NotNil(t, stats.LastTimestamp)
}

func TestGetStatisticsEmpty(t *testing.T) {
	store := NewStore(nil)

	stats := store.GetStatistics()

	require.Equal(t, 0, stats.TotalEntries)
	require.Equal(t, "0.00%", stats.SuccessRate)
	require.Nil(t, stats.LastTimestamp)
}

func TestIndexerMirrorsEntries(t *testing.T) {
	idx := &collectingIndexer{}
	store := NewStore(idx)

	store.Record(Entry{OrderID: "O1", Type: "NEW_ORDER", Success: true})
	store.Record(Entry{OrderID: "O2", Type: "ORDER_CANCEL", Success: false})

	// Close drains the mirror queue before returning
	store.Close()

	require.Equal(t, 2, idx.count())
}

func TestRecordNeverBlocksOnSlowIndexer(t *testing.T) {
	release := make(chan struct{})
	idx := &collectingIndexer{release: release}
	store := NewStore(idx)

	// With the worker stalled, writes beyond the queue bound drop their
	// mirror instead of blocking or piling up goroutines
	total := indexQueueSize + 10
	for i := 0; i < total; i++ {
		store.Record(Entry{OrderID: fmt.Sprintf("O%d", i), Type: "NEW_ORDER"})
	}
	require.Equal(t, total, store.Len())

	close(release)
	store.Close()

	require.Greater(t, idx.count(), 0)
	require.LessOrEqual(t, idx.count(), indexQueueSize+1)
}

func TestClearOld(t *testing.T) {
	store := NewStore(nil)

	store.Record(Entry{
		OrderID:   "O1",
		Type:      "NEW_ORDER",
		Timestamp: time.Now().Add(-48 * time.Hour),
	})
	store.Record(Entry{OrderID: "O2", Type: "NEW_ORDER"})

	removed := store.ClearOld(24)

	require.Equal(t, 1, removed)
	require.Empty(t, store.ByOrder("O1"))
	require.Len(t, store.ByOrder("O2"), 1)
}
