/*
watch.go - Live recomputation

PURPOSE:
  Live variants of the read paths. Each subscribes to the store's Watcher
  and recomputes on every notification.

LEAVE BALANCE:
  Usage spans several months. Every month is subscribed independently and
  keeps its own latest MonthUsage; a change to one month recomputes only
  that month and folds the per-month map into a new snapshot under a mutex.
  The map is folded into a LeaveReport, so every snapshot is what
  LeaveBalance would return at that moment.

DELIVERY:
  Output channels hold one value. A newer snapshot replaces an unread one,
  so a slow reader always sees the latest state and never blocks writers.
  Channels close once ctx is done and every subscription has stopped.
*/
package worklog

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/hours-ledger/calendar"
)

// WatchMonthSummary emits the month's summary now and after every change.
func (l *Ledger) WatchMonthSummary(ctx context.Context, owner OwnerID, month calendar.YearMonth) (<-chan MonthSummary, error) {
	ctx, cancel := context.WithCancel(ctx)
	changes, err := l.store.WatchMonth(ctx, owner, month)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", month, err)
	}
	first, err := l.MonthSummary(ctx, owner, month)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan MonthSummary, 1)
	out <- first
	go func() {
		defer close(out)
		defer cancel()
		for range changes {
			s, err := l.MonthSummary(ctx, owner, month)
			if err != nil {
				if ctx.Err() == nil {
					l.log.Warn("summary recompute failed", "owner", owner, "month", month, "err", err)
				}
				continue
			}
			sendLatest(out, s)
		}
	}()
	return out, nil
}

// WatchLeaveBalance emits the leave report for viewed now and after every
// change to a month it reads. Settings are read once at subscription.
func (l *Ledger) WatchLeaveBalance(ctx context.Context, owner OwnerID, viewed calendar.YearMonth) (<-chan LeaveReport, error) {
	settings, err := l.LeaveSettings(ctx, owner)
	if err != nil {
		return nil, err
	}
	w := AccrualWindow(settings, viewed)
	return watchUsage(ctx, l, owner, reportMonths(w, viewed), func(per map[calendar.YearMonth]MonthUsage) LeaveReport {
		return leaveReport(settings, w, viewed, per)
	})
}

// watchUsage keeps a MonthUsage per month current and emits fold(per) after
// each change. fold runs under the lock and must not retain per.
func watchUsage[T any](ctx context.Context, l *Ledger, owner OwnerID, months []calendar.YearMonth, fold func(map[calendar.YearMonth]MonthUsage) T) (<-chan T, error) {
	ctx, cancel := context.WithCancel(ctx)

	subs := make(map[calendar.YearMonth]<-chan struct{}, len(months))
	per := make(map[calendar.YearMonth]MonthUsage, len(months))
	for _, ym := range months {
		ch, err := l.store.WatchMonth(ctx, owner, ym)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("watch %s: %w", ym, err)
		}
		subs[ym] = ch

		entries, err := l.store.MonthEntries(ctx, owner, ym)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("load %s: %w", ym, err)
		}
		per[ym] = AggregateMonth(l.table, entries)
	}

	out := make(chan T, 1)
	out <- fold(per)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for ym, changes := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range changes {
				entries, err := l.store.MonthEntries(ctx, owner, ym)
				if err != nil {
					if ctx.Err() == nil {
						l.log.Warn("leave usage recompute failed", "owner", owner, "month", ym, "err", err)
					}
					continue
				}
				mu.Lock()
				per[ym] = AggregateMonth(l.table, entries)
				sendLatest(out, fold(per))
				mu.Unlock()
			}
		}()
	}

	go func() {
		wg.Wait()
		cancel()
		close(out)
	}()
	return out, nil
}

// sendLatest puts v on ch, replacing any unread value. ch must have a
// buffer of one and the caller must be its only sender at the time.
func sendLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
