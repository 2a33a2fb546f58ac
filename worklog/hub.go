package worklog

import (
	"context"
	"sync"

	"github.com/warp/hours-ledger/calendar"
)

// =============================================================================
// HUB - In-process change notification
// =============================================================================

// Hub fans out month-change notifications to subscribers. Stores without a
// native change feed embed one and call Publish after each committed write.
//
// Each subscriber channel has a buffer of one and sends never block: a
// subscriber that has not drained its pending value simply keeps it, which
// coalesces bursts of writes into one notification.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[hubKey]map[int]chan struct{}
}

type hubKey struct {
	owner OwnerID
	month calendar.YearMonth
}

func NewHub() *Hub {
	return &Hub{subs: make(map[hubKey]map[int]chan struct{})}
}

// WatchMonth implements Watcher.
func (h *Hub) WatchMonth(ctx context.Context, owner OwnerID, month calendar.YearMonth) (<-chan struct{}, error) {
	k := hubKey{owner: owner, month: month}
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[k] == nil {
		h.subs[k] = make(map[int]chan struct{})
	}
	h.subs[k][id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs[k], id)
		if len(h.subs[k]) == 0 {
			delete(h.subs, k)
		}
		close(ch)
		h.mu.Unlock()
	}()
	return ch, nil
}

// Publish notifies every subscriber of the owner's month.
func (h *Hub) Publish(owner OwnerID, month calendar.YearMonth) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[hubKey{owner: owner, month: month}] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions for a month.
func (h *Hub) Subscribers(owner OwnerID, month calendar.YearMonth) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[hubKey{owner: owner, month: month}])
}
