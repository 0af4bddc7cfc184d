package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDrainRunsInPostOrder(t *testing.T) {
	q := New(0, nil)
	var got []int
	for i := range 5 {
		if !q.Post(func() { got = append(got, i) }) {
			t.Fatalf("post %d rejected", i)
		}
	}
	if q.Len() != 5 {
		t.Fatalf("Len = %d, want 5", q.Len())
	}

	if n := q.Drain(); n != 5 {
		t.Errorf("Drain ran %d, want 5", n)
	}
	if diff := cmp.Diff([]int{0, 1, 2, 3, 4}, got); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	if q.Len() != 0 {
		t.Errorf("Len after drain = %d", q.Len())
	}
}

func TestDrainRunsNestedPosts(t *testing.T) {
	q := New(0, nil)
	var got []string
	q.Post(func() {
		got = append(got, "outer")
		q.Post(func() { got = append(got, "inner") })
	})
	if n := q.Drain(); n != 2 {
		t.Errorf("Drain ran %d, want 2", n)
	}
	if diff := cmp.Diff([]string{"outer", "inner"}, got); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestPostRejects(t *testing.T) {
	q := New(2, nil)
	if !q.Post(func() {}) || !q.Post(func() {}) {
		t.Fatal("posts under the limit rejected")
	}
	if q.Post(func() {}) {
		t.Error("post over the limit accepted")
	}

	q.Drain()
	q.Close()
	if q.Post(func() {}) {
		t.Error("post after close accepted")
	}
}

func TestPanicIsContained(t *testing.T) {
	q := New(0, nil)
	ran := false
	q.Post(func() { panic("boom") })
	q.Post(func() { ran = true })

	q.Drain()
	if !ran {
		t.Error("command after panic did not run")
	}
	done, panicked := q.Stats()
	if done != 1 || panicked != 1 {
		t.Errorf("Stats = (%d, %d), want (1, 1)", done, panicked)
	}
}

func TestRunConsumesFromOtherGoroutines(t *testing.T) {
	q := New(0, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- q.Run(ctx) }()

	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				q.Post(func() {
					mu.Lock()
					count++
					mu.Unlock()
				})
			}
		}()
	}
	wg.Wait()
	q.Close()

	if err := <-errc; !errors.Is(err, ErrClosed) {
		t.Fatalf("Run returned %v, want ErrClosed", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if count != 200 {
		t.Errorf("ran %d commands, want 200", count)
	}
}

func TestRunStopsOnContext(t *testing.T) {
	q := New(0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
}
