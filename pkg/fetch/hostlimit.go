package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// hostSlot tracks one host's semaphore and how many callers hold or wait on it
type hostSlot struct {
	sem         *semaphore.Weighted
	inUse       int64
	lastRelease time.Time
}

// HostLimiter caps concurrent image downloads per host when an import runs items in parallel.
// A nil *HostLimiter imposes no limit.
type HostLimiter struct {
	slots map[string]*hostSlot
	mu    sync.Mutex
	limit int64
	log   *logrus.Entry
}

// NewHostLimiter creates a limiter allowing perHost concurrent downloads per host
func NewHostLimiter(perHost int, log *logrus.Entry) *HostLimiter {
	limit := int64(perHost)
	if limit <= 0 {
		limit = 2
	}
	return &HostLimiter{
		slots: make(map[string]*hostSlot),
		limit: limit,
		log:   log.WithField("component", "host_limiter"),
	}
}

// Acquire blocks until a download slot for host is free or ctx is done.
// The returned release func must be called exactly once.
func (l *HostLimiter) Acquire(ctx context.Context, host string) (release func(), err error) {
	if l == nil {
		return func() {}, nil
	}

	l.mu.Lock()
	slot, exists := l.slots[host]
	if !exists {
		slot = &hostSlot{sem: semaphore.NewWeighted(l.limit)}
		l.slots[host] = slot
		l.log.WithFields(logrus.Fields{"host": host, "limit": l.limit}).Debug("Created download slot for host")
	}
	slot.inUse++
	l.mu.Unlock()

	if err := slot.sem.Acquire(ctx, 1); err != nil {
		l.mu.Lock()
		slot.inUse--
		l.mu.Unlock()
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			slot.inUse--
			slot.lastRelease = time.Now()
			l.mu.Unlock()
			slot.sem.Release(1)
		})
	}, nil
}

// Prune forgets hosts idle for at least maxIdle and returns how many were removed
func (l *HostLimiter) Prune(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	pruned := 0
	for host, slot := range l.slots {
		if slot.inUse == 0 && !slot.lastRelease.IsZero() && now.Sub(slot.lastRelease) >= maxIdle {
			delete(l.slots, host)
			pruned++
		}
	}
	if pruned > 0 {
		l.log.Debugf("Pruned %d idle hosts, %d remain", pruned, len(l.slots))
	}
	return pruned
}

// RunPruning prunes idle hosts every interval until ctx is done. Meant for long-running servers.
func (l *HostLimiter) RunPruning(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Prune(interval)
		case <-ctx.Done():
			l.log.Debugf("Stopping host pruning: %v", ctx.Err())
			return
		}
	}
}

// Len returns the number of tracked hosts
func (l *HostLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
