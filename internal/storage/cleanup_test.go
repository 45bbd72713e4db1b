package storage

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dhruvspathak/Songify/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupManagerSweep(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore()
	require.NoError(t, store.MarkUsed(ctx, "a", time.Minute))
	require.NoError(t, store.MarkUsed(ctx, "b", time.Minute))

	cm := NewCleanupManager(store, time.Hour)
	assert.Equal(t, 0, cm.Sweep(ctx))

	clock.Advance(time.Minute)
	assert.Equal(t, 2, cm.Sweep(ctx))
	assert.Zero(t, store.Size())
}

func TestCleanupManagerRunsOnInterval(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	store := NewMemoryUsedCodes(WithClock(clock.Now))
	require.NoError(t, store.MarkUsed(ctx, "a", time.Second))
	clock.Advance(time.Second)

	cm := NewCleanupManager(store, 10*time.Millisecond)
	cm.Start(ctx)
	defer cm.Stop()

	assert.Eventually(t, func() bool {
		return store.Size() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestCleanupManagerStopIdempotent(t *testing.T) {
	cm := NewCleanupManager(NewMemoryUsedCodes(), time.Hour)
	cm.Start(context.Background())
	cm.Stop()
	cm.Stop()
}

func TestCleanupManagerStartTwiceLogsOnce(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	cm := NewCleanupManager(NewMemoryUsedCodes(), time.Hour)
	cm.Start(context.Background())
	cm.Start(context.Background())
	cm.Stop()

	assert.Equal(t, 1, strings.Count(buf.String(), "Starting used-code sweeper"))
}

func TestCleanupManagerStopWithoutStart(t *testing.T) {
	cm := NewCleanupManager(NewMemoryUsedCodes(), time.Hour)
	done := make(chan struct{})
	go func() {
		cm.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked without Start")
	}
}

func TestCleanupManagerDefaultInterval(t *testing.T) {
	cm := NewCleanupManager(NewMemoryUsedCodes(), 0)
	assert.Equal(t, DefaultCleanupInterval, cm.interval)
}
