package retention

import (
	"sync"

	"mercator-hq/truncator/pkg/history"
)

// recordLocks hands out one mutex per record. Entries are dropped once no
// sweep holds or waits for them.
type recordLocks struct {
	mu    sync.Mutex
	locks map[history.Record]*recordLock
}

type recordLock struct {
	mu   sync.Mutex
	refs int
}

func newRecordLocks() *recordLocks {
	return &recordLocks{locks: make(map[history.Record]*recordLock)}
}

// lock blocks until the record is free and returns its unlock function.
func (l *recordLocks) lock(record history.Record) func() {
	l.mu.Lock()
	rl, ok := l.locks[record]
	if !ok {
		rl = &recordLock{}
		l.locks[record] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()

	return func() {
		rl.mu.Unlock()

		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, record)
		}
		l.mu.Unlock()
	}
}

func (l *recordLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
