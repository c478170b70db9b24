// Package gate provides the admission gate that bounds how many operations
// of one class are in flight at the same time.
package gate

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"market-scraper/pkg/logger"
)

// Gate admits at most max holders at once. Waiters are admitted in the
// order the semaphore hands out slots; no stronger fairness is promised.
type Gate struct {
	max     int64
	sem     *semaphore.Weighted
	current atomic.Int64
	log     *logger.Logger

	totalAcquires  atomic.Int64
	totalReleases  atomic.Int64
	cancelledWaits atomic.Int64
}

// New creates a gate with max slots. Values below 1 are raised to 1.
func New(max int, log *logger.Logger) *Gate {
	if max < 1 {
		max = 1
	}
	return &Gate{
		max: int64(max),
		sem: semaphore.NewWeighted(int64(max)),
		log: log.WithField("component", "gate"),
	}
}

// Acquire blocks until a slot is free or ctx ends. On error no slot is held.
func (g *Gate) Acquire(ctx context.Context) error {
	g.totalAcquires.Add(1)
	if err := ctx.Err(); err != nil {
		g.cancelledWaits.Add(1)
		return err
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		g.cancelledWaits.Add(1)
		return err
	}
	g.current.Add(1)
	return nil
}

// Release returns a slot. Releasing without holding one is logged and ignored.
func (g *Gate) Release() {
	for {
		cur := g.current.Load()
		if cur <= 0 {
			g.log.Warn("Attempted to release gate slot when none were held")
			return
		}
		if g.current.CompareAndSwap(cur, cur-1) {
			break
		}
	}
	g.totalReleases.Add(1)
	g.sem.Release(1)
}

// Stats returns a snapshot of gate counters.
func (g *Gate) Stats() Stats {
	return Stats{
		Max:            int(g.max),
		InFlight:       int(g.current.Load()),
		TotalAcquires:  g.totalAcquires.Load(),
		TotalReleases:  g.totalReleases.Load(),
		CancelledWaits: g.cancelledWaits.Load(),
	}
}

type Stats struct {
	Max            int   `json:"max"`
	InFlight       int   `json:"in_flight"`
	TotalAcquires  int64 `json:"total_acquires"`
	TotalReleases  int64 `json:"total_releases"`
	CancelledWaits int64 `json:"cancelled_waits"`
}

// FanoutLimit converts a configured per-category bound into an
// errgroup.SetLimit argument, where a negative value means no limit.
func FanoutLimit(max int) int {
	if max <= 0 {
		return -1
	}
	return max
}
