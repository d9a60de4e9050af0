package dbsupervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHandleLockExcludesConcurrentLock(t *testing.T) {
	h := NewHandle(nil)

	unlock := h.Lock()
	acquired := make(chan struct{})
	go func() {
		unlock2 := h.Lock()
		defer unlock2()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock acquired while first was held")
	case <-time.After(100 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second Lock never acquired after unlock")
	}
}

func TestHandleRLockAllowsConcurrentReaders(t *testing.T) {
	h := NewHandle(nil)

	runlock1 := h.RLock()
	acquired := make(chan struct{})
	go func() {
		runlock2 := h.RLock()
		defer runlock2()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("concurrent RLock should not block")
	}
	runlock1()
	assert.Nil(t, h.Client())
}
