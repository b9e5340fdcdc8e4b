package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"asset-preview/internal/assets"
)

func req(name string) Request {
	return Request{Kind: KindPreview, Asset: assets.AssetRef{Path: "/lib/" + name}, Size: 64}
}

func TestSubmitDeliversThroughDispatcher(t *testing.T) {
	loop := NewMainLoop(16)
	defer loop.Close()

	s := New(func(_ context.Context, r Request) Result {
		return Result{Path: r.Asset.Path + ".png"}
	}, loop, Config{Workers: 4, QueueSize: 32})
	defer s.Stop()

	const n = 20
	var (
		wg        sync.WaitGroup
		active    atomic.Int32
		overlaps  atomic.Int32
		delivered sync.Map
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		name := string(rune('a'+i)) + ".obj"
		err := s.Submit(context.Background(), req(name), func(r Request, res Result) {
			defer wg.Done()
			if active.Add(1) > 1 {
				overlaps.Add(1)
			}
			time.Sleep(time.Millisecond)
			delivered.Store(r.Asset.Path, res.Path)
			active.Add(-1)
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()

	if overlaps.Load() != 0 {
		t.Errorf("callbacks overlapped %d times", overlaps.Load())
	}
	got, ok := delivered.Load("/lib/a.obj")
	if !ok || got != "/lib/a.obj.png" {
		t.Errorf("a.obj result = %v", got)
	}
}

func TestQueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	s := New(func(context.Context, Request) Result {
		started <- struct{}{}
		<-release
		return Result{}
	}, Immediate{}, Config{Workers: 1, QueueSize: 1})

	if err := s.Submit(context.Background(), req("a.obj"), nil); err != nil {
		t.Fatal(err)
	}
	<-started
	if err := s.Submit(context.Background(), req("b.obj"), nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Submit(context.Background(), req("c.obj"), nil); !errors.Is(err, ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}

	close(release)
	s.Stop()
}

func TestCancelledBeforeStart(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var runs atomic.Int32
	s := New(func(context.Context, Request) Result {
		runs.Add(1)
		started <- struct{}{}
		<-release
		return Result{Path: "x"}
	}, Immediate{}, Config{Workers: 1, QueueSize: 4})

	if err := s.Submit(context.Background(), req("a.obj"), nil); err != nil {
		t.Fatal(err)
	}
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	if err := s.Submit(ctx, req("b.obj"), func(_ Request, res Result) { done <- res }); err != nil {
		t.Fatal(err)
	}
	cancel()
	close(release)

	res := <-done
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("err = %v", res.Err)
	}
	s.Stop()
	if runs.Load() != 1 {
		t.Errorf("job ran %d times", runs.Load())
	}
}

func TestJobPanicBecomesError(t *testing.T) {
	s := New(func(context.Context, Request) Result {
		panic("host exploded")
	}, Immediate{}, Config{Workers: 1})
	defer s.Stop()

	done := make(chan Result, 1)
	if err := s.Submit(context.Background(), req("a.obj"), func(_ Request, res Result) { done <- res }); err != nil {
		t.Fatal(err)
	}
	res := <-done
	if res.Err == nil || !strings.Contains(res.Err.Error(), "host exploded") {
		t.Errorf("err = %v", res.Err)
	}
}

func TestStopDrainsAndRejects(t *testing.T) {
	var runs atomic.Int32
	s := New(func(context.Context, Request) Result {
		time.Sleep(time.Millisecond)
		runs.Add(1)
		return Result{}
	}, Immediate{}, Config{Workers: 2, QueueSize: 16})

	for i := 0; i < 10; i++ {
		if err := s.Submit(context.Background(), req("a.obj"), nil); err != nil {
			t.Fatal(err)
		}
	}
	s.Stop()
	s.Stop()

	if runs.Load() != 10 {
		t.Errorf("runs = %d, want 10", runs.Load())
	}
	if err := s.Submit(context.Background(), req("a.obj"), nil); !errors.Is(err, ErrStopped) {
		t.Errorf("err = %v, want ErrStopped", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("PREVIEW_WORKERS", "3")
	s := New(func(context.Context, Request) Result { return Result{} }, nil, Config{})
	defer s.Stop()
	if s.Workers() != 3 {
		t.Errorf("Workers = %d", s.Workers())
	}
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue()
	s := New(func(_ context.Context, r Request) Result {
		return Result{Path: r.Asset.Name()}
	}, q, Config{Workers: 2})

	var got []string
	for _, name := range []string{"a.obj", "b.obj", "c.obj"} {
		if err := s.Submit(context.Background(), req(name), func(_ Request, res Result) {
			got = append(got, res.Path)
		}); err != nil {
			t.Fatal(err)
		}
	}
	s.Stop()

	select {
	case <-q.Ready():
	default:
		t.Fatal("queue not signalled")
	}
	if n := q.Drain(); n != 3 || len(got) != 3 {
		t.Errorf("drained %d, got %v", n, got)
	}
	if q.Drain() != 0 {
		t.Error("second drain ran callbacks")
	}
}

func TestMainLoopSurvivesPanicsAndClose(t *testing.T) {
	loop := NewMainLoop(4)
	ran := make(chan struct{})
	loop.Dispatch(func() { panic("callback bug") })
	loop.Dispatch(func() { close(ran) })
	<-ran

	loop.Close()
	loop.Close()
	loop.Dispatch(func() { t.Error("ran after close") })
}

func TestMainLoopCallbackMayDispatch(t *testing.T) {
	loop := NewMainLoop(1)
	defer loop.Close()

	const depth = 16
	var order []int
	finished := make(chan struct{})
	var next func(i int) func()
	next = func(i int) func() {
		return func() {
			order = append(order, i)
			if i == depth {
				close(finished)
				return
			}
			// Two dispatches from the loop itself overflow the initial buffer.
			loop.Dispatch(next(i + 1))
			loop.Dispatch(func() {})
		}
	}
	loop.Dispatch(next(1))

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("nested dispatch stalled the main loop")
	}
	for i, v := range order {
		if v != i+1 {
			t.Fatalf("order = %v", order)
		}
	}
}

type gate struct {
	open chan bool
}

func (g *gate) WaitIfPaused() bool { return <-g.open }

func TestBackpressureHoldsRequests(t *testing.T) {
	g := &gate{open: make(chan bool)}
	var runs atomic.Int32
	s := New(func(context.Context, Request) Result {
		runs.Add(1)
		return Result{Path: "x"}
	}, Immediate{}, Config{Workers: 1, QueueSize: 4, Backpressure: g})

	done := make(chan Result, 2)
	cb := func(_ Request, res Result) { done <- res }
	for _, name := range []string{"a.obj", "b.obj"} {
		if err := s.Submit(context.Background(), req(name), cb); err != nil {
			t.Fatal(err)
		}
	}

	time.Sleep(20 * time.Millisecond)
	if runs.Load() != 0 {
		t.Fatal("request ran while paused")
	}

	g.open <- true
	if res := <-done; res.Path != "x" {
		t.Errorf("first result = %+v", res)
	}

	g.open <- false
	if res := <-done; !errors.Is(res.Err, ErrStopped) {
		t.Errorf("second result = %+v, want ErrStopped", res)
	}
	s.Stop()
	if runs.Load() != 1 {
		t.Errorf("job ran %d times, want 1", runs.Load())
	}
}
