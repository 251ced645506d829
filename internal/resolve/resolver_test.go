package resolve

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Success(t *testing.T) {
	r := New(WithLookup(func(ctx context.Context, addr string) ([]string, error) {
		return []string{"macbook.local."}, nil
	}))

	name := r.Resolve(context.Background(), "192.168.1.5")
	assert.Equal(t, "macbook.local", name)
}

func TestResolve_FailureFallsBackToAddress(t *testing.T) {
	r := New(WithLookup(func(ctx context.Context, addr string) ([]string, error) {
		return nil, errors.New("no such host")
	}))

	name := r.Resolve(context.Background(), "10.0.0.9")
	assert.Equal(t, "10.0.0.9", name)
}

func TestResolve_FailureCachedWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	r := New(WithLookup(func(ctx context.Context, addr string) ([]string, error) {
		calls.Add(1)
		return nil, errors.New("no such host")
	}))

	first := r.Resolve(context.Background(), "10.0.0.9")
	second := r.Resolve(context.Background(), "10.0.0.9")

	assert.Equal(t, "10.0.0.9", first)
	assert.Equal(t, "10.0.0.9", second)
	assert.Equal(t, int32(1), calls.Load(), "failed lookup should not be retried")
}

func TestResolve_Idempotent(t *testing.T) {
	var calls atomic.Int32
	r := New(WithLookup(func(ctx context.Context, addr string) ([]string, error) {
		calls.Add(1)
		return []string{"host-" + addr}, nil
	}))

	first := r.Resolve(context.Background(), "192.168.1.5")
	second := r.Resolve(context.Background(), "192.168.1.5")

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolve_SlowLookupDoesNotBlockOtherAddresses(t *testing.T) {
	slowRelease := make(chan struct{})
	r := New(WithLookup(func(ctx context.Context, addr string) ([]string, error) {
		if addr == "10.0.0.1" {
			select {
			case <-slowRelease:
			case <-ctx.Done():
			}
			return []string{"slow.local."}, nil
		}
		return []string{"fast.local."}, nil
	}), WithTimeout(5*time.Second))

	// Start the slow lookup but don't wait on it.
	r.Lookup("10.0.0.1")

	done := make(chan string, 1)
	go func() {
		done <- r.Resolve(context.Background(), "10.0.0.2")
	}()

	select {
	case name := <-done:
		assert.Equal(t, "fast.local", name)
	case <-time.After(time.Second):
		t.Fatal("fast lookup blocked behind slow lookup")
	}

	close(slowRelease)
	assert.Equal(t, "slow.local", r.Resolve(context.Background(), "10.0.0.1"))
}

func TestResolve_TimeoutFallsBackToAddress(t *testing.T) {
	r := New(
		WithLookup(func(ctx context.Context, addr string) ([]string, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
		WithTimeout(10*time.Millisecond),
	)

	name := r.Resolve(context.Background(), "10.0.0.9")
	assert.Equal(t, "10.0.0.9", name)
}

func TestResolve_CanceledCallerGetsRawAddress(t *testing.T) {
	release := make(chan struct{})
	r := New(WithLookup(func(ctx context.Context, addr string) ([]string, error) {
		<-release
		return []string{"late.local."}, nil
	}), WithTimeout(5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	name := r.Resolve(ctx, "192.168.1.7")
	assert.Equal(t, "192.168.1.7", name)

	// The in-flight lookup still completes and wins the cache.
	close(release)
	require.Eventually(t, func() bool {
		return r.Resolve(context.Background(), "192.168.1.7") == "late.local"
	}, time.Second, 10*time.Millisecond)
}

func TestResolve_ConcurrentSameAddressSingleLookup(t *testing.T) {
	var calls atomic.Int32
	r := New(WithLookup(func(ctx context.Context, addr string) ([]string, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return []string{"shared.local."}, nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := r.Resolve(context.Background(), "192.168.1.5")
			assert.Equal(t, "shared.local", name)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, r.Size())
}

func TestResolve_EmptyAddress(t *testing.T) {
	r := New(WithLookup(func(ctx context.Context, addr string) ([]string, error) {
		t.Fatal("lookup should not run for empty address")
		return nil, nil
	}))

	assert.Empty(t, r.Resolve(context.Background(), ""))
	assert.Equal(t, 0, r.Size())
}
