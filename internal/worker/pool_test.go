package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type mockResult struct {
	err error
}

func (r *mockResult) Err() error {
	return r.err
}

type mockJob struct {
	duration  time.Duration
	shouldErr bool
	executed  *int32
}

func (j *mockJob) Execute(ctx context.Context) Result {
	if j.executed != nil {
		atomic.AddInt32(j.executed, 1)
	}
	if j.duration > 0 {
		select {
		case <-time.After(j.duration):
		case <-ctx.Done():
			return &mockResult{err: ctx.Err()}
		}
	}
	if j.shouldErr {
		return &mockResult{err: errors.New("job error")}
	}
	return &mockResult{}
}

func TestNewPool(t *testing.T) {
	if p := NewPool(5); p.workers != 5 {
		t.Errorf("expected 5 workers, got %d", p.workers)
	}
	if p := NewPool(0); p.workers != 1 {
		t.Errorf("expected 1 worker for 0 input, got %d", p.workers)
	}
	if p := NewPool(-1); p.workers != 1 {
		t.Errorf("expected 1 worker for negative input, got %d", p.workers)
	}
}

func TestPool_Execution(t *testing.T) {
	pool := NewPool(2)
	pool.Start(context.Background())

	var executed int32
	count := 10
	for i := 0; i < count; i++ {
		if !pool.Submit(context.Background(), &mockJob{executed: &executed}) {
			t.Fatalf("submit %d rejected", i)
		}
	}

	results := pool.Wait()
	if len(results) != count {
		t.Errorf("expected %d results, got %d", count, len(results))
	}
	if got := atomic.LoadInt32(&executed); got != int32(count) {
		t.Errorf("expected %d executed jobs, got %d", count, got)
	}
}

func TestPool_ManyJobsBeforeWait(t *testing.T) {
	pool := NewPool(2)
	pool.Start(context.Background())

	done := make(chan int)
	go func() {
		for i := 0; i < 200; i++ {
			pool.Submit(context.Background(), &mockJob{})
		}
		done <- len(pool.Wait())
	}()

	select {
	case n := <-done:
		if n != 200 {
			t.Errorf("expected 200 results, got %d", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pool blocked with more jobs than buffer capacity")
	}
}

type concurrencyJob struct {
	start    func()
	end      func()
	duration time.Duration
}

func (j *concurrencyJob) Execute(ctx context.Context) Result {
	if j.start != nil {
		j.start()
	}
	time.Sleep(j.duration)
	if j.end != nil {
		j.end()
	}
	return &mockResult{}
}

func TestPool_Concurrency(t *testing.T) {
	workers := 10
	pool := NewPool(workers)
	pool.Start(context.Background())

	var current, maxConcurrent, completed int32
	var mu sync.Mutex

	totalJobs := 50
	for i := 0; i < totalJobs; i++ {
		pool.Submit(context.Background(), &concurrencyJob{
			start: func() {
				curr := atomic.AddInt32(&current, 1)
				mu.Lock()
				if curr > maxConcurrent {
					maxConcurrent = curr
				}
				mu.Unlock()
			},
			end: func() {
				atomic.AddInt32(&current, -1)
				atomic.AddInt32(&completed, 1)
			},
			duration: 10 * time.Millisecond,
		})
	}

	pool.Wait()

	if got := atomic.LoadInt32(&completed); got != int32(totalJobs) {
		t.Errorf("expected %d completed jobs, got %d", totalJobs, got)
	}
	mu.Lock()
	max := maxConcurrent
	mu.Unlock()
	if max > int32(workers) {
		t.Errorf("max concurrency %d exceeded workers %d", max, workers)
	}
}

func TestPool_ErrorHandling(t *testing.T) {
	pool := NewPool(2)
	pool.Start(context.Background())

	pool.Submit(context.Background(), &mockJob{shouldErr: true})
	pool.Submit(context.Background(), &mockJob{})

	results := pool.Wait()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	failed := 0
	for _, res := range results {
		if res.Err() != nil {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("expected 1 error, got %d", failed)
	}
}

func TestPool_SubmitAfterCancel(t *testing.T) {
	pool := NewPool(1)
	pool.Start(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if pool.Submit(ctx, &mockJob{}) {
		t.Error("submit with cancelled context was accepted")
	}
	if n := len(pool.Wait()); n != 0 {
		t.Errorf("expected no results, got %d", n)
	}
}

func TestPool_JobsOutliveCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(1)
	pool.Start(ctx)

	started := make(chan struct{})
	pool.Submit(ctx, &concurrencyJob{start: func() { close(started) }})
	<-started
	cancel()

	pool.Submit(context.Background(), &mockJob{duration: 20 * time.Millisecond})
	for _, res := range pool.Wait() {
		if res.Err() != nil {
			t.Errorf("accepted job saw cancellation: %v", res.Err())
		}
	}
}

func TestPool_SubmitBlockedUntilCancel(t *testing.T) {
	pool := NewPool(1)
	pool.Start(context.Background())

	release := make(chan struct{})
	started := make(chan struct{})
	pool.Submit(context.Background(), &concurrencyJob{start: func() { close(started); <-release }})
	<-started

	// One worker busy and a queue of two: the fourth submit has to wait.
	pool.Submit(context.Background(), &mockJob{})
	pool.Submit(context.Background(), &mockJob{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if pool.Submit(ctx, &mockJob{}) {
		t.Error("submit into a full queue was accepted")
	}

	close(release)
	if n := len(pool.Wait()); n != 3 {
		t.Errorf("expected 3 results, got %d", n)
	}
}

func TestResultCollector(t *testing.T) {
	c := NewResultCollector()
	c.Add(&mockResult{})
	c.Add(&mockResult{err: errors.New("err")})

	res := c.Results()
	if len(res) != 2 {
		t.Errorf("expected 2 results, got %d", len(res))
	}
	res[0] = nil
	if c.Results()[0] == nil {
		t.Error("Results exposed internal slice")
	}
}
