package application

import "sync"

// locker hands out non blocking per key locks. A caller that finds the key
// taken is rejected instead of queued.
type locker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newLocker() *locker {
	return &locker{held: make(map[string]struct{})}
}

func (l *locker) tryLock(key string) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, false
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true
}
