/*
store.go - Persistence interface for day entries and owner settings

PURPOSE:
  Defines the boundary between the ledger and the database. The store is a
  document store keyed by owner: one document per (owner, date) entry, plus
  one bulk plan and one leave settings document per owner.

KEY INTERFACES:
  EntryStore:    day entries, partitioned by owner and month
  SettingsStore: the two per-owner singleton documents
  Watcher:       change notification per owner and month
  Store:         all of the above

WRITE CONTRACT:
  PutEntry is an upsert keyed by owner and date: a second write for the
  same date replaces the first (last write wins). Callers pass entries
  prepared with DayEntry.Stamp; the store persists Hours as given.

ABSENT DOCUMENTS:
  GetEntry returns ErrNotFound. GetBulkPlan and GetLeaveSettings return
  (nil, nil) so the ledger can substitute defaults.

NOTIFICATION CONTRACT:
  WatchMonth returns a channel that receives a value after any write that
  affects the month. Notifications may be coalesced: a reader that is
  behind sees one value for several writes and must re-read the month. The
  channel is closed when ctx is done.

IMPLEMENTATIONS:
  - worklog/store/memory.go: in-memory, for tests and `--store memory`
  - store/sqlite/sqlite.go: SQLite with an in-process Hub
  - store/mongo/mongo.go: MongoDB with change streams

SEE ALSO:
  - ledger.go: higher-level operations over Store
  - hub.go: notification fan-out used by the in-process stores
*/
package worklog

import (
	"context"

	"github.com/warp/hours-ledger/calendar"
)

// =============================================================================
// ENTRY STORE
// =============================================================================

type EntryStore interface {
	// MonthEntries returns every stored entry of the month, ordered by date.
	MonthEntries(ctx context.Context, owner OwnerID, month calendar.YearMonth) ([]DayEntry, error)

	// GetEntry returns ErrNotFound when no entry exists for the date.
	GetEntry(ctx context.Context, owner OwnerID, date calendar.Date) (DayEntry, error)

	// PutEntry creates or replaces the entry for e.Date.
	PutEntry(ctx context.Context, owner OwnerID, e DayEntry) error
}

// =============================================================================
// SETTINGS STORE
// =============================================================================

type SettingsStore interface {
	GetBulkPlan(ctx context.Context, owner OwnerID) (*BulkPlan, error)
	PutBulkPlan(ctx context.Context, owner OwnerID, plan BulkPlan) error

	GetLeaveSettings(ctx context.Context, owner OwnerID) (*LeaveSettings, error)
	PutLeaveSettings(ctx context.Context, owner OwnerID, settings LeaveSettings) error
}

// =============================================================================
// WATCHER
// =============================================================================

// Watcher notifies about writes to an owner's month.
type Watcher interface {
	WatchMonth(ctx context.Context, owner OwnerID, month calendar.YearMonth) (<-chan struct{}, error)
}

// Store is the full persistence surface the ledger needs.
type Store interface {
	EntryStore
	SettingsStore
	Watcher
	Close() error
}

// EntriesByDate indexes entries by date.
func EntriesByDate(entries []DayEntry) map[calendar.Date]DayEntry {
	out := make(map[calendar.Date]DayEntry, len(entries))
	for _, e := range entries {
		out[e.Date] = e
	}
	return out
}
