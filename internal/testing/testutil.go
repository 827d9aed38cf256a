// Package testing provides test utilities for the hivestore packages.
//
// Using t.Fatal or t.FailNow in a goroutine does not stop the test: those
// functions call runtime.Goexit, which only exits the calling goroutine.
// Concurrent tests return errors through GoroutineTest instead.
package testing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xtxerr/hivestore/internal/storage/types"
)

// =============================================================================
// Error Channel Pattern
// =============================================================================

// GoroutineTest runs goroutines that report failures as errors.
//
// Example usage:
//
//	func TestConcurrentWriters(t *testing.T) {
//	    gt := testutil.NewGoroutineTest(t)
//	    for i := 0; i < 4; i++ {
//	        gt.GoWithContext(func(ctx context.Context) error {
//	            _, err := tables.WriteTable(ctx, dir, "sales", part(i), cols)
//	            return err
//	        })
//	    }
//	    gt.Wait()
//	}
type GoroutineTest struct {
	t      *testing.T
	wg     sync.WaitGroup
	mu     sync.Mutex
	errs   []error
	ctx    context.Context
	cancel context.CancelFunc
}

// NewGoroutineTest creates a new GoroutineTest helper.
func NewGoroutineTest(t *testing.T) *GoroutineTest {
	return NewGoroutineTestWithTimeout(t, 30*time.Second)
}

// NewGoroutineTestWithTimeout creates a GoroutineTest whose context expires
// after timeout.
func NewGoroutineTestWithTimeout(t *testing.T, timeout time.Duration) *GoroutineTest {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return &GoroutineTest{
		t:      t,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Go runs fn in a goroutine and records its error.
func (gt *GoroutineTest) Go(fn func() error) {
	gt.GoWithContext(func(context.Context) error { return fn() })
}

// GoWithContext runs fn with the test context in a goroutine.
func (gt *GoroutineTest) GoWithContext(fn func(ctx context.Context) error) {
	gt.wg.Add(1)
	go func() {
		defer gt.wg.Done()
		if err := fn(gt.ctx); err != nil {
			gt.mu.Lock()
			gt.errs = append(gt.errs, err)
			gt.mu.Unlock()
		}
	}()
}

// Wait waits for all goroutines and fails the test if any returned an
// error. It must be called from the test goroutine.
func (gt *GoroutineTest) Wait() {
	gt.t.Helper()
	gt.wg.Wait()
	gt.cancel()

	if len(gt.errs) > 0 {
		for i, err := range gt.errs {
			gt.t.Errorf("goroutine error [%d/%d]: %v", i+1, len(gt.errs), err)
		}
		gt.t.FailNow()
	}
}

// Context returns the context handed to GoWithContext functions.
func (gt *GoroutineTest) Context() context.Context {
	return gt.ctx
}

// =============================================================================
// Table fixtures
// =============================================================================

// NullCell marks a null cell in Table rows.
const NullCell = "<null>"

// Table builds a table from string rows; NullCell becomes null.
func Table(t *testing.T, columns []string, rows ...[]string) *types.Table {
	t.Helper()
	tbl := types.NewTable(columns...)
	for _, r := range rows {
		vals := make([]types.Value, len(r))
		for i, s := range r {
			if s == NullCell {
				vals[i] = types.Null()
			} else {
				vals[i] = types.String(s)
			}
		}
		if err := tbl.Append(vals...); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	return tbl
}

// Rows renders each row of tbl projected onto columns, sorted. Two tables
// hold the same multiset of rows iff their Rows are equal. Missing columns
// render as null.
func Rows(tbl *types.Table, columns []string) []string {
	pos := make([]int, len(columns))
	for i, c := range columns {
		pos[i] = tbl.ColumnIndex(c)
	}

	out := make([]string, len(tbl.Rows))
	for i, r := range tbl.Rows {
		parts := make([]string, len(columns))
		for j, p := range pos {
			v := types.Null()
			if p >= 0 {
				v = r[p]
			}
			parts[j] = fmt.Sprintf("%s=%s", columns[j], v)
		}
		out[i] = strings.Join(parts, ",")
	}
	sort.Strings(out)
	return out
}
