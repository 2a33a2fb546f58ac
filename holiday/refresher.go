/*
refresher.go - Background holiday cache warming

PURPOSE:
  Years outside the bundled tables come from the network. The refresher
  fetches the current and next year on a fixed interval so that month
  summaries rarely wait on the holiday API, and so that a year whose first
  lookup failed gets another chance without a user request.

USAGE:
  r := holiday.NewRefresher(resolver, time.Hour)
  r.Start()
  defer r.Stop()
*/
package holiday

import (
	"context"
	"sync"
	"time"

	"github.com/warp/hours-ledger/calendar"
)

// Refresher periodically refreshes the resolver cache.
type Refresher struct {
	Resolver *Resolver
	Interval time.Duration
	// Today is overridable in tests.
	Today func() calendar.Date

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewRefresher(resolver *Resolver, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Refresher{
		Resolver: resolver,
		Interval: interval,
		Today:    calendar.Today,
	}
}

// Start begins refreshing. Calling Start twice is a no-op.
func (rf *Refresher) Start() {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.ticker != nil {
		return
	}
	rf.ticker = time.NewTicker(rf.Interval)
	rf.stop = make(chan struct{})
	rf.wg.Add(1)
	go rf.run(rf.ticker, rf.stop)

	rf.Resolver.log.Info("refresher started", "interval", rf.Interval)
}

// Stop halts the refresher and waits for an in-flight refresh to finish.
func (rf *Refresher) Stop() {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.ticker == nil {
		return
	}
	rf.ticker.Stop()
	close(rf.stop)
	rf.wg.Wait()
	rf.ticker = nil
	rf.Resolver.log.Info("refresher stopped")
}

func (rf *Refresher) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rf.wg.Done()

	rf.RefreshNow(context.Background())
	for {
		select {
		case <-ticker.C:
			rf.RefreshNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RefreshNow refreshes the current and next year once. Bundled years are
// skipped since they cannot change at runtime.
func (rf *Refresher) RefreshNow(ctx context.Context) {
	year := rf.Today().Year
	for _, y := range []int{year, year + 1} {
		if rf.Resolver.Bundled(y) {
			// Bundled data is immutable; make sure it is cached.
			rf.Resolver.Year(ctx, y)
			continue
		}
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := rf.Resolver.Refresh(ctx, y)
		cancel()
		if err != nil {
			rf.Resolver.log.Warn("holiday refresh failed", "year", y, "err", err)
		}
	}
}
