package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dhruvspathak/Songify/internal/log"
)

// DefaultCleanupInterval is how often expired used codes are swept.
const DefaultCleanupInterval = time.Minute

// CleanupManager periodically sweeps expired entries from a UsedCodeStore.
// One ticker serves the whole store.
type CleanupManager struct {
	store    UsedCodeStore
	interval time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(store UsedCodeStore, interval time.Duration) *CleanupManager {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &CleanupManager{
		store:    store,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the cleanup loop in a goroutine
func (cm *CleanupManager) Start(ctx context.Context) {
	if !cm.started.CompareAndSwap(false, true) {
		return
	}
	log.LogInfoWithFields("replay", "Starting used-code sweeper", map[string]any{
		"interval": cm.interval.String(),
	})
	go cm.run(ctx)
}

// Stop ends the loop and waits for it to finish. Safe to call more than once,
// and before Start.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() {
		close(cm.stopChan)
	})
	if !cm.started.Load() {
		return
	}
	<-cm.doneChan
	log.LogDebugWithFields("replay", "Used-code sweeper stopped", nil)
}

func (cm *CleanupManager) run(ctx context.Context) {
	defer close(cm.doneChan)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cm.Sweep(ctx)
		case <-cm.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Sweep performs one cleanup pass and returns the number of entries removed.
func (cm *CleanupManager) Sweep(ctx context.Context) int {
	count, err := cm.store.CleanupExpired(ctx)
	if err != nil {
		log.LogErrorWithFields("replay", "Failed to sweep expired codes", map[string]any{
			"error": err.Error(),
		})
		return count
	}

	if count > 0 {
		log.LogDebugWithFields("replay", "Swept expired codes", map[string]any{
			"count": count,
		})
	}
	return count
}
