package memory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JulesNsenda/chakucart/internal/orders/adapters/memory"
	"github.com/JulesNsenda/chakucart/internal/orders/ports"
)

func TestLocker_SerializesSameKey(t *testing.T) {
	locker := memory.NewLocker()
	ctx := context.Background()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "order:1")
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			defer unlock()

			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	if maxInside.Load() != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxInside.Load())
	}
}

func TestLocker_IndependentKeys(t *testing.T) {
	locker := memory.NewLocker()
	ctx := context.Background()

	unlockA, err := locker.Lock(ctx, "order:a")
	if err != nil {
		t.Fatal(err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlockB, err := locker.Lock(ctx, "order:b")
	if err != nil {
		t.Fatalf("different keys must not block: %v", err)
	}
	unlockB()
}

func TestLocker_TimesOut(t *testing.T) {
	locker := memory.NewLocker()

	unlock, err := locker.Lock(context.Background(), "order:1")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "order:1"); !errors.Is(err, ports.ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}

	unlock()
	unlock()

	again, err := locker.Lock(context.Background(), "order:1")
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	again()
}
