package dispatch_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/meetscribe/internal/dispatch"
	"github.com/MrWong99/meetscribe/internal/observe"
)

// recorder is a Handler that remembers every item it saw.
type recorder struct {
	mu    sync.Mutex
	items []int
}

func (r *recorder) handle(_ context.Context, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	return nil
}

func (r *recorder) seen() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.items)
}

func TestDispatcher_FIFO(t *testing.T) {
	t.Parallel()

	var rec recorder
	d := dispatch.New(rec.handle)
	d.Start(context.Background())

	want := make([]int, 100)
	for i := range want {
		want[i] = i
		if err := d.Enqueue(i); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := rec.seen(); !slices.Equal(got, want) {
		t.Errorf("delivered %v, want %v", got, want)
	}
}

func TestDispatcher_DrainsAfterClose(t *testing.T) {
	t.Parallel()

	var rec recorder
	slow := func(ctx context.Context, n int) error {
		time.Sleep(10 * time.Millisecond)
		return rec.handle(ctx, n)
	}
	d := dispatch.New(slow)
	d.Start(context.Background())

	for i := range 5 {
		_ = d.Enqueue(i)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := len(rec.seen()); got != 5 {
		t.Errorf("handled %d items before Close returned, want 5", got)
	}
	select {
	case <-d.Done():
	default:
		t.Error("Done not closed after successful Close")
	}
}

func TestDispatcher_EnqueueAfterClose(t *testing.T) {
	t.Parallel()

	var rec recorder
	d := dispatch.New(rec.handle)
	d.Start(context.Background())
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.Enqueue(1); !errors.Is(err, dispatch.ErrClosed) {
		t.Errorf("Enqueue after Close = %v, want ErrClosed", err)
	}
	// Second Close is a no-op.
	if err := d.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestDispatcher_DrainTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	stuck := func(context.Context, int) error {
		<-release
		return nil
	}
	d := dispatch.New(stuck, dispatch.WithDrainTimeout(50*time.Millisecond))
	d.Start(context.Background())
	_ = d.Enqueue(1)
	_ = d.Enqueue(2)

	start := time.Now()
	err := d.Close()
	if !errors.Is(err, dispatch.ErrDrainTimeout) {
		t.Fatalf("Close = %v, want ErrDrainTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Close took %v, want about 50ms", elapsed)
	}

	close(release)
	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not finish after the handler was released")
	}
}

func TestDispatcher_HandlerFailuresDoNotStopConsumer(t *testing.T) {
	t.Parallel()

	var rec recorder
	h := func(ctx context.Context, n int) error {
		switch n {
		case 1:
			return errors.New("llm unavailable")
		case 2:
			panic("boom")
		}
		return rec.handle(ctx, n)
	}

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	d := dispatch.New(h, dispatch.WithMetrics(m))
	d.Start(context.Background())
	for i := range 4 {
		_ = d.Enqueue(i)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := rec.seen(); !slices.Equal(got, []int{0, 3}) {
		t.Errorf("handled %v, want [0 3]", got)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	values := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if sum, ok := met.Data.(metricdata.Sum[int64]); ok && len(sum.DataPoints) > 0 {
				values[met.Name] = sum.DataPoints[0].Value
			}
		}
	}
	if values["meetscribe.dispatch.handler_errors"] != 2 {
		t.Errorf("handler_errors = %d, want 2", values["meetscribe.dispatch.handler_errors"])
	}
	if values["meetscribe.dispatch.queue_depth"] != 0 {
		t.Errorf("queue_depth = %d, want 0", values["meetscribe.dispatch.queue_depth"])
	}
}

func TestDispatcher_HandlerContextOutlivesStartContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	gotErr := make(chan error, 1)
	d := dispatch.New(func(hctx context.Context, _ int) error {
		gotErr <- hctx.Err()
		return nil
	})
	d.Start(ctx)
	cancel()

	_ = d.Enqueue(1)
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := <-gotErr; err != nil {
		t.Errorf("handler context error = %v, want nil", err)
	}
}

func TestDispatcher_CloseWithoutStart(t *testing.T) {
	t.Parallel()

	var rec recorder
	d := dispatch.New(rec.handle)
	if err := d.Close(); err != nil {
		t.Errorf("Close = %v, want nil", err)
	}
	d.Start(context.Background())
	if err := d.Enqueue(1); !errors.Is(err, dispatch.ErrClosed) {
		t.Errorf("Enqueue = %v, want ErrClosed", err)
	}
}
