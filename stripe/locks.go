package stripe

import (
	"sync"
)

// paymentLock is the mutex of one payment and the number of goroutines
// holding or waiting for it.
type paymentLock struct {
	mu   sync.Mutex
	refs int
}

// LockManager manages per-payment locks so webhook deliveries, captures and
// cancellations of the same PaymentIntent never interleave, while different
// payments proceed in parallel. An entry lives while someone holds or waits
// for it and is removed by the last release.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*paymentLock
}

// NewLockManager creates a new lock manager
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]*paymentLock)}
}

// LockPayment acquires the lock of the given PaymentIntent id. It returns a
// function that must be called exactly once to release the lock.
func (lm *LockManager) LockPayment(paymentID string) func() {
	lm.mu.Lock()
	lock, ok := lm.locks[paymentID]
	if !ok {
		lock = &paymentLock{}
		lm.locks[paymentID] = lock
	}
	lock.refs++
	lm.mu.Unlock()

	lock.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			lock.mu.Unlock()
			lm.mu.Lock()
			lock.refs--
			if lock.refs == 0 {
				delete(lm.locks, paymentID)
			}
			lm.mu.Unlock()
		})
	}
}

// Size returns the number of tracked locks.
func (lm *LockManager) Size() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return len(lm.locks)
}
