/*
janitor.go - Background expired-entry sweeper

PURPOSE:
  Get evicts expired entries lazily, but a key that is never read again
  keeps its payload alive forever. The janitor sweeps the whole cache on
  a fixed interval so idle entries are reclaimed.

DESIGN:
  - Runs a background goroutine with a configurable sweep interval
  - Stop waits for the goroutine to exit before returning
  - Start/Stop are safe to call at most once each

CONFIGURATION:
  - SweepInterval: How often to sweep (default: 1 minute)

USAGE:
  j := cache.NewJanitor(c)
  j.Start()
  // ... on shutdown
  j.Stop()
*/
package cache

import (
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
)

// Janitor periodically removes expired entries from a Cache.
type Janitor struct {
	Cache         *Cache
	SweepInterval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewJanitor creates a janitor for c with the default sweep interval.
func NewJanitor(c *Cache) *Janitor {
	return &Janitor{
		Cache:         c,
		SweepInterval: 1 * time.Minute,
		stop:          make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (j *Janitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.ticker != nil {
		return
	}
	j.ticker = time.NewTicker(j.SweepInterval)
	j.wg.Add(1)

	go j.run()

	zlog.Debug().Dur("interval", j.SweepInterval).Msg("cache janitor started")
}

// Stop halts the sweep loop and waits for it to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.ticker != nil {
		j.ticker.Stop()
		close(j.stop)
		j.wg.Wait()
		j.ticker = nil
		zlog.Debug().Msg("cache janitor stopped")
	}
}

func (j *Janitor) run() {
	defer j.wg.Done()

	for {
		select {
		case <-j.ticker.C:
			if removed := j.Cache.Sweep(); removed > 0 {
				zlog.Debug().Int("removed", removed).Msg("cache sweep")
			}
		case <-j.stop:
			return
		}
	}
}
