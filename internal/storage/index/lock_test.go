package index

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	herrors "github.com/xtxerr/hivestore/internal/errors"
)

func testLockOptions(timeout time.Duration) LockOptions {
	return LockOptions{
		Filename: testIndexFile + ".lock",
		Timeout:  timeout,
		Interval: 5 * time.Millisecond,
	}
}

func TestLockExclusiveTimesOut(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	held, err := LockExclusive(ctx, dir, testLockOptions(time.Second))
	if err != nil {
		t.Fatalf("LockExclusive: %v", err)
	}
	defer held.Unlock()

	start := time.Now()
	_, err = LockExclusive(ctx, dir, testLockOptions(100*time.Millisecond))
	if !errors.Is(err, herrors.ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	if !herrors.IsRetriable(err) {
		t.Error("lock timeout should be retriable")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}

	// Readers are excluded by a writer too.
	if _, err := LockShared(ctx, dir, testLockOptions(50*time.Millisecond)); !errors.Is(err, herrors.ErrLockTimeout) {
		t.Errorf("expected shared lock to time out, got %v", err)
	}
}

func TestLockSharedCoexist(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a, err := LockShared(ctx, dir, testLockOptions(time.Second))
	if err != nil {
		t.Fatalf("LockShared a: %v", err)
	}
	b, err := LockShared(ctx, dir, testLockOptions(time.Second))
	if err != nil {
		t.Fatalf("LockShared b: %v", err)
	}

	if _, err := LockExclusive(ctx, dir, testLockOptions(50*time.Millisecond)); !errors.Is(err, herrors.ErrLockTimeout) {
		t.Errorf("writer should wait for readers, got %v", err)
	}

	a.Unlock()
	b.Unlock()

	w, err := LockExclusive(ctx, dir, testLockOptions(time.Second))
	if err != nil {
		t.Fatalf("LockExclusive after readers left: %v", err)
	}
	if !w.Exclusive() {
		t.Error("expected exclusive lock")
	}
	if err := w.Unlock(); err != nil {
		t.Errorf("Unlock: %v", err)
	}
	// Second unlock is a no-op.
	if err := w.Unlock(); err != nil {
		t.Errorf("second Unlock: %v", err)
	}
}

func TestLockWaitsForRelease(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	held, err := LockExclusive(ctx, dir, testLockOptions(time.Second))
	if err != nil {
		t.Fatalf("LockExclusive: %v", err)
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		held.Unlock()
	}()

	l, err := LockExclusive(ctx, dir, testLockOptions(2*time.Second))
	if err != nil {
		t.Fatalf("expected lock after release, got %v", err)
	}
	l.Unlock()
}

func TestLockContextCancel(t *testing.T) {
	dir := t.TempDir()

	held, err := LockExclusive(context.Background(), dir, testLockOptions(time.Second))
	if err != nil {
		t.Fatalf("LockExclusive: %v", err)
	}
	defer held.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := LockExclusive(ctx, dir, testLockOptions(5*time.Second)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLockMutualExclusion(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	var inside atomic.Int32
	var violations atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := LockExclusive(ctx, dir, testLockOptions(10*time.Second))
			if err != nil {
				violations.Add(1)
				return
			}
			if inside.Add(1) != 1 {
				violations.Add(1)
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			l.Unlock()
		}()
	}
	wg.Wait()

	if v := violations.Load(); v != 0 {
		t.Errorf("%d lock violations", v)
	}
}

func TestLockRejectsNonPositiveTimeout(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	for _, timeout := range []time.Duration{0, -time.Second} {
		_, err := LockExclusive(ctx, dir, LockOptions{Filename: testIndexFile + ".lock", Timeout: timeout})
		if !errors.Is(err, herrors.ErrInvalidConfig) {
			t.Errorf("timeout %v: expected ErrInvalidConfig, got %v", timeout, err)
		}
	}
}

func TestLockZeroIntervalStillTimesOut(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	held, err := LockExclusive(ctx, dir, testLockOptions(time.Second))
	if err != nil {
		t.Fatalf("LockExclusive: %v", err)
	}
	defer held.Unlock()

	start := time.Now()
	_, err = LockExclusive(ctx, dir, LockOptions{Timeout: 100 * time.Millisecond, Filename: testIndexFile + ".lock"})
	if !errors.Is(err, herrors.ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}
