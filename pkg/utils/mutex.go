package utils

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrLockBusy is returned when a key stayed locked through every retry
var ErrLockBusy = errors.New("lock busy")

// Mutex is a set of locks keyed by string. TryLock gives up after a bounded
// number of attempts with exponential backoff instead of blocking forever.
type Mutex struct {
	locks map[string]struct{}
	m     sync.Mutex

	maxRetry  int
	maxDelay  float64 // nanoseconds
	baseDelay float64 // nanoseconds
	factor    float64
	jitter    float64
}

// NewMapMutex returns a keyed mutex that waits at most a few seconds for a key
func NewMapMutex() *Mutex {
	maxRetry := 50
	maxDelay := float64(500 * time.Millisecond)
	baseDelay := float64(time.Millisecond)
	factor := float64(1.3)
	jitter := float64(0.2)

	return NewCustomizedMapMutex(maxRetry, maxDelay, baseDelay, factor, jitter)
}

// NewCustomizedMapMutex returns a keyed mutex with the given retry policy. Delays are in nanoseconds.
func NewCustomizedMapMutex(maxRetry int, maxDelay, baseDelay, factor, jitter float64) *Mutex {
	return &Mutex{
		locks:     make(map[string]struct{}),
		maxRetry:  maxRetry,
		maxDelay:  maxDelay,
		baseDelay: baseDelay,
		factor:    factor,
		jitter:    jitter,
	}
}

// TryLock takes the lock for key, reporting false if it stayed busy through every retry
func (m *Mutex) TryLock(key string) bool {
	return m.TryLockContext(context.Background(), key) == nil
}

// TryLockContext takes the lock for key. It returns ErrLockBusy if the key stayed
// busy through every retry, or the context error once ctx is done.
func (m *Mutex) TryLockContext(ctx context.Context, key string) error {
	for i := 0; i < m.maxRetry; i++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "waiting for lock %s", key)
		}

		m.m.Lock()
		if _, held := m.locks[key]; !held {
			m.locks[key] = struct{}{}
			m.m.Unlock()
			return nil
		}
		m.m.Unlock()

		timer := time.NewTimer(m.backoff(i))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrapf(ctx.Err(), "waiting for lock %s", key)
		case <-timer.C:
		}
	}
	return ErrLockBusy
}

// Unlock releases the lock for key
func (m *Mutex) Unlock(key string) {
	m.m.Lock()
	delete(m.locks, key)
	m.m.Unlock()
}

func (m *Mutex) backoff(retries int) time.Duration {
	delay := m.baseDelay
	for delay < m.maxDelay && retries > 0 {
		delay *= m.factor
		retries--
	}
	if delay > m.maxDelay {
		delay = m.maxDelay
	}
	delay *= 1 + m.jitter*(rand.Float64()*2-1)
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}
