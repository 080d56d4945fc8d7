package stations

import (
	"context"
	"time"

	"github.com/voltroute/planner/core/logger"
	"github.com/voltroute/planner/core/metrics"
)

// Refresher periodically rebuilds the station snapshot from a feed and swaps
// it into the store. It is the single writer of the store.
type Refresher struct {
	store    *Store
	feed     Feed
	interval time.Duration
	timeout  time.Duration
	log      logger.Logger
	sink     metrics.SnapshotRecorder
}

// NewRefresher wires a refresher. A nil sink disables metrics.
func NewRefresher(store *Store, feed Feed, interval, timeout time.Duration, log logger.Logger, sink metrics.SnapshotRecorder) *Refresher {
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Refresher{store: store, feed: feed, interval: interval, timeout: timeout, log: log, sink: sink}
}

// Run refreshes immediately, then on every tick until the context is
// cancelled. A failed fetch keeps the previous snapshot in place.
func (r *Refresher) Run(ctx context.Context) {
	r.RefreshOnce(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.RefreshOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RefreshOnce performs a single fetch-build-swap cycle.
func (r *Refresher) RefreshOnce(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	records, err := r.feed.Fetch(fetchCtx)
	if err != nil {
		r.log.Warnf("station feed fetch failed, keeping previous snapshot: %v", err)
		r.record(metrics.SnapshotRefresh{Duration: time.Since(start), Err: err.Error(), Time: time.Now()})
		return
	}
	snap := BuildSnapshot(records)
	r.store.Swap(snap)
	r.log.Debugf("station snapshot refreshed: %d stations in %s", snap.Len(), time.Since(start))
	r.record(metrics.SnapshotRefresh{Stations: snap.Len(), Duration: time.Since(start), Time: time.Now()})
}

func (r *Refresher) record(ev metrics.SnapshotRefresh) {
	if r.sink == nil {
		return
	}
	if err := r.sink.RecordSnapshotRefresh(ev); err != nil {
		r.log.Warnf("record snapshot refresh: %v", err)
	}
}
