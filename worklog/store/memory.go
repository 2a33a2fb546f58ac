// Package store provides an in-memory worklog.Store.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/hours-ledger/calendar"
	"github.com/warp/hours-ledger/worklog"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	*worklog.Hub

	mu       sync.RWMutex
	entries  map[key]map[calendar.Date]worklog.DayEntry
	plans    map[worklog.OwnerID]worklog.BulkPlan
	settings map[worklog.OwnerID]worklog.LeaveSettings

	// failPut, when set, is consulted before every PutEntry.
	failPut func(date calendar.Date) error
}

type key struct {
	Owner worklog.OwnerID
	Month calendar.YearMonth
}

func NewMemory() *Memory {
	return &Memory{
		Hub:      worklog.NewHub(),
		entries:  make(map[key]map[calendar.Date]worklog.DayEntry),
		plans:    make(map[worklog.OwnerID]worklog.BulkPlan),
		settings: make(map[worklog.OwnerID]worklog.LeaveSettings),
	}
}

// FailPutWith installs a fault injector for PutEntry. Pass nil to remove it.
func (m *Memory) FailPutWith(fn func(date calendar.Date) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPut = fn
}

func (m *Memory) MonthEntries(_ context.Context, owner worklog.OwnerID, month calendar.YearMonth) ([]worklog.DayEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byDate := m.entries[key{Owner: owner, Month: month}]
	result := make([]worklog.DayEntry, 0, len(byDate))
	for _, e := range byDate {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (m *Memory) GetEntry(_ context.Context, owner worklog.OwnerID, date calendar.Date) (worklog.DayEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key{Owner: owner, Month: date.YearMonth()}][date]
	if !ok {
		return worklog.DayEntry{}, worklog.ErrNotFound
	}
	return e, nil
}

// PutEntry upserts by date. Last write wins.
func (m *Memory) PutEntry(_ context.Context, owner worklog.OwnerID, e worklog.DayEntry) error {
	m.mu.Lock()
	if m.failPut != nil {
		if err := m.failPut(e.Date); err != nil {
			m.mu.Unlock()
			return err
		}
	}
	k := key{Owner: owner, Month: e.Date.YearMonth()}
	if m.entries[k] == nil {
		m.entries[k] = make(map[calendar.Date]worklog.DayEntry)
	}
	m.entries[k][e.Date] = e
	m.mu.Unlock()

	m.Publish(owner, k.Month)
	return nil
}

func (m *Memory) GetBulkPlan(_ context.Context, owner worklog.OwnerID) (*worklog.BulkPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[owner]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) PutBulkPlan(_ context.Context, owner worklog.OwnerID, plan worklog.BulkPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[owner] = plan
	return nil
}

func (m *Memory) GetLeaveSettings(_ context.Context, owner worklog.OwnerID) (*worklog.LeaveSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[owner]
	if !ok {
		return nil, nil
	}
	if s.ValidUntil != nil {
		v := *s.ValidUntil
		s.ValidUntil = &v
	}
	return &s, nil
}

func (m *Memory) PutLeaveSettings(_ context.Context, owner worklog.OwnerID, s worklog.LeaveSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ValidUntil != nil {
		v := *s.ValidUntil
		s.ValidUntil = &v
	}
	m.settings[owner] = s
	return nil
}

func (m *Memory) Close() error { return nil }

var _ worklog.Store = (*Memory)(nil)
