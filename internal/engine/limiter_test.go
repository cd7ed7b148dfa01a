package engine

import (
	"sync"
	"testing"
)

func TestKeyLimiter_SerializesSameKeyAndCleansUp(t *testing.T) {
	l := newKeyLimiter()
	k := sheetKey{sessionID: 1, userID: 2}

	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.lock(k)
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("concurrent holders = %d, want 1", maxSeen)
	}
	if n := l.size(); n != 0 {
		t.Fatalf("limiter keeps %d keys after release", n)
	}
}

func TestKeyLimiter_DifferentKeysDoNotBlock(t *testing.T) {
	l := newKeyLimiter()
	unlockA := l.lock(sheetKey{1, 1})
	done := make(chan struct{})
	go func() {
		unlockB := l.lock(sheetKey{1, 2})
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}
