package engine

import "sync"

// keyLimiter сериализует в процессе операции над одним листом оценки,
// чтобы конкурирующие запросы ждали на мьютексе, а не на блокировке строки.
// Межпроцессную согласованность обеспечивает FOR UPDATE в базе.
type keyLimiter struct {
	mu    sync.Mutex
	byKey map[sheetKey]*keyLock
}

type sheetKey struct {
	sessionID int64
	userID    int64
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLimiter() *keyLimiter {
	return &keyLimiter{byKey: make(map[sheetKey]*keyLock)}
}

func (l *keyLimiter) lock(k sheetKey) func() {
	l.mu.Lock()
	m, ok := l.byKey[k]
	if !ok {
		m = &keyLock{}
		l.byKey[k] = m
	}
	m.refs++
	l.mu.Unlock()

	m.mu.Lock()
	return func() {
		m.mu.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.byKey, k)
		}
		l.mu.Unlock()
	}
}

func (l *keyLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}
