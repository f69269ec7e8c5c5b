package telegram

import "sync"

// chatLocks serializes updates of one chat while different chats are handled
// concurrently. Entries are dropped when no update holds or waits for them.
type chatLocks struct {
	mu    sync.Mutex
	chats map[int64]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

func newChatLocks() *chatLocks {
	return &chatLocks{chats: make(map[int64]*chatLock)}
}

// Lock blocks until chatID is free and returns the matching unlock.
func (l *chatLocks) Lock(chatID int64) func() {
	l.mu.Lock()
	lock, ok := l.chats[chatID]
	if !ok {
		lock = &chatLock{}
		l.chats[chatID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.chats, chatID)
		}
		l.mu.Unlock()
	}
}

func (l *chatLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.chats)
}
