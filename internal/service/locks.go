package service

import (
	"context"
	"sync"
)

// chapterLocks serializes segmentation, translation and review of one chapter.
// Entries are reference counted and dropped when nobody holds or waits.
type chapterLocks struct {
	mu    sync.Mutex
	locks map[int64]*chapterLock
}

type chapterLock struct {
	sem  chan struct{}
	refs int
}

func newChapterLocks() *chapterLocks {
	return &chapterLocks{locks: make(map[int64]*chapterLock)}
}

// Lock blocks until the chapter is free or ctx is done.
func (l *chapterLocks) Lock(ctx context.Context, chapterID int64) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[chapterID]
	if !ok {
		entry = &chapterLock{sem: make(chan struct{}, 1)}
		l.locks[chapterID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(chapterID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			l.release(chapterID, entry)
		})
	}, nil
}

func (l *chapterLocks) release(chapterID int64, entry *chapterLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, chapterID)
	}
}

func (l *chapterLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
