package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSleep(t *testing.T) {
	begin := time.Now()
	assert.NoError(t, Sleep(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(begin), 20*time.Millisecond)

	assert.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, 0), context.Canceled)

	begin = time.Now()
	assert.ErrorIs(t, Sleep(ctx, time.Second), context.Canceled)
	assert.Less(t, time.Since(begin), 500*time.Millisecond)
}

func TestSleep_ReusedTimerStartsFresh(t *testing.T) {
	// a cancelled sleep returns a still-running timer to the pool
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Second), context.DeadlineExceeded)

	begin := time.Now()
	assert.NoError(t, Sleep(context.Background(), 50*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(begin), 50*time.Millisecond)
}

func TestSleep_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, Sleep(context.Background(), 10*time.Millisecond))
		}()
	}
	wg.Wait()
}
