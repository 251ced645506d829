package merge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/dnstail/internal/event"
	"github.com/rileyhilliard/dnstail/internal/filter"
	"github.com/rileyhilliard/dnstail/internal/logger"
)

// fakeSource is a Source fed from a channel. If err is set, it is reported
// after the channel closes, like a mid-stream disconnect.
type fakeSource struct {
	label string
	ch    chan string
	err   error
	once  sync.Once
}

func newFakeSource(label string, lines ...string) *fakeSource {
	s := &fakeSource{label: label, ch: make(chan string, len(lines)+1)}
	for _, l := range lines {
		s.ch <- l
	}
	return s
}

func (s *fakeSource) Label() string        { return s.label }
func (s *fakeSource) Lines() <-chan string { return s.ch }
func (s *fakeSource) Err() error           { return s.err }

func (s *fakeSource) Close() error {
	s.once.Do(func() { close(s.ch) })
	return nil
}

// end closes the line channel, optionally with a terminal error.
func (s *fakeSource) end(err error) {
	s.err = err
	s.once.Do(func() { close(s.ch) })
}

// captureEmitter records everything the merger emits.
type captureEmitter struct {
	mu      sync.Mutex
	records []event.Record
	notices []string
}

func (c *captureEmitter) Record(rec event.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
}

func (c *captureEmitter) Notice(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notices = append(c.notices, msg)
}

func (c *captureEmitter) Records() []event.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Record(nil), c.records...)
}

func (c *captureEmitter) Notices() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.notices...)
}

// fakeResolver resolves addresses via a function, defaulting to "host-<addr>".
type fakeResolver struct {
	fn func(addr string) string
}

func (r *fakeResolver) Resolve(ctx context.Context, addr string) string {
	if r.fn != nil {
		return r.fn(addr)
	}
	return "host-" + addr
}

func queryLine(domain, client string) string {
	return fmt.Sprintf("Oct  4 14:18:46: query[A] %s from %s", domain, client)
}

func TestRun_MergesBothSources(t *testing.T) {
	a := newFakeSource("pihole1",
		queryLine("one.example.com", "192.168.1.1"),
		queryLine("two.example.com", "192.168.1.1"),
	)
	b := newFakeSource("pihole2",
		queryLine("three.example.com", "192.168.1.2"),
	)
	a.end(nil)
	b.end(nil)

	out := &captureEmitter{}
	m := New([]Source{a, b}, &fakeResolver{}, filter.Criteria{}, out,
		WithLogger(logger.Noop()))

	stats := m.Run(context.Background())

	records := out.Records()
	require.Len(t, records, 3)
	assert.Equal(t, int64(3), stats.Lines)
	assert.Equal(t, int64(3), stats.Shown)
	assert.Equal(t, StateStopped, m.State())

	// Within-source order must survive the merge.
	var fromA []string
	for _, rec := range records {
		if rec.Source == "pihole1" {
			fromA = append(fromA, rec.Detail)
		}
	}
	require.Len(t, fromA, 2)
	assert.Contains(t, fromA[0], "one.example.com")
	assert.Contains(t, fromA[1], "two.example.com")
}

func TestRun_SpecimenQueryLine(t *testing.T) {
	src := newFakeSource("pihole1",
		"Jan 01 12:00:00 dnsmasq[1]: query[A] example.com from 192.168.1.5")
	src.end(nil)

	out := &captureEmitter{}
	resolver := &fakeResolver{fn: func(addr string) string {
		assert.Equal(t, "192.168.1.5", addr)
		return "macbook.local"
	}}
	m := New([]Source{src}, resolver, filter.Criteria{}, out, WithLogger(logger.Noop()))

	m.Run(context.Background())

	records := out.Records()
	require.Len(t, records, 1)
	assert.Equal(t, event.ActionQuery, records[0].Action)
	assert.Equal(t, "192.168.1.5", records[0].Client)
	assert.Equal(t, "macbook.local", records[0].ClientName)
}

func TestRun_EmissionOrderSurvivesSlowResolution(t *testing.T) {
	lines := []string{
		queryLine("first.example.com", "10.0.0.1"),
		queryLine("second.example.com", "10.0.0.2"),
		queryLine("third.example.com", "10.0.0.3"),
	}
	src := newFakeSource("pihole1", lines...)
	src.end(nil)

	// The first address resolves slowest; emission order must not change.
	resolver := &fakeResolver{fn: func(addr string) string {
		if addr == "10.0.0.1" {
			time.Sleep(50 * time.Millisecond)
		}
		return "host-" + addr
	}}

	out := &captureEmitter{}
	m := New([]Source{src}, resolver, filter.Criteria{}, out, WithLogger(logger.Noop()))

	m.Run(context.Background())

	records := out.Records()
	require.Len(t, records, 3)
	assert.Contains(t, records[0].Detail, "first.example.com")
	assert.Contains(t, records[1].Detail, "second.example.com")
	assert.Contains(t, records[2].Detail, "third.example.com")
}

func TestRun_BlockedOnly(t *testing.T) {
	src := newFakeSource("pihole2",
		queryLine("ads.example.com", "192.168.1.50"),
		"Oct  4 14:18:46: gravity blocked ads.example.com is 0.0.0.0",
		queryLine("fine.example.com", "192.168.1.50"),
	)
	src.end(nil)

	out := &captureEmitter{}
	m := New([]Source{src}, &fakeResolver{}, filter.Criteria{BlockedOnly: true}, out,
		WithLogger(logger.Noop()))

	stats := m.Run(context.Background())

	records := out.Records()
	require.Len(t, records, 1)
	assert.Equal(t, event.ActionBlocked, records[0].Action)
	assert.Equal(t, "192.168.1.50", records[0].Client)
	assert.Equal(t, int64(2), stats.Suppressed)
	assert.Equal(t, int64(1), stats.Blocked)
}

func TestRun_IdentityFilter(t *testing.T) {
	src := newFakeSource("pihole1",
		queryLine("a.example.com", "192.168.1.5"),
		queryLine("b.example.com", "192.168.1.9"),
	)
	src.end(nil)

	out := &captureEmitter{}
	resolver := &fakeResolver{fn: func(addr string) string {
		if addr == "192.168.1.5" {
			return "macbook.local"
		}
		return addr
	}}
	m := New([]Source{src}, resolver, filter.Criteria{Identity: "MACBOOK"}, out,
		WithLogger(logger.Noop()))

	m.Run(context.Background())

	records := out.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "macbook.local", records[0].ClientName)
}

func TestRun_OneSourceDownKeepsDraining(t *testing.T) {
	a := newFakeSource("pihole1", queryLine("early.example.com", "10.0.0.1"))
	b := &fakeSource{label: "pihole2", ch: make(chan string, 8)}

	out := &captureEmitter{}
	m := New([]Source{a, b}, &fakeResolver{}, filter.Criteria{}, out,
		WithLogger(logger.Noop()))

	done := make(chan Stats, 1)
	go func() { done <- m.Run(context.Background()) }()

	// First source fails mid-stream.
	a.end(errors.New("connection reset"))

	require.Eventually(t, func() bool {
		return m.State() == StateOneSourceDown
	}, time.Second, 5*time.Millisecond)

	// The surviving source keeps producing events.
	b.ch <- queryLine("late.example.com", "10.0.0.2")
	require.Eventually(t, func() bool {
		for _, rec := range out.Records() {
			if rec.Source == "pihole2" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	b.end(nil)
	stats := <-done

	assert.Equal(t, StateStopped, m.State())
	assert.Equal(t, int64(1), stats.SourceErrors)

	var sawDisconnect bool
	for _, n := range out.Notices() {
		if n == "pihole1 disconnected: connection reset" {
			sawDisconnect = true
		}
	}
	assert.True(t, sawDisconnect, "expected a disconnect notice, got %v", out.Notices())
}

func TestRun_CancellationStops(t *testing.T) {
	a := &fakeSource{label: "pihole1", ch: make(chan string)}
	b := &fakeSource{label: "pihole2", ch: make(chan string)}

	out := &captureEmitter{}
	m := New([]Source{a, b}, &fakeResolver{}, filter.Criteria{}, out,
		WithLogger(logger.Noop()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Stats, 1)
	go func() { done <- m.Run(ctx) }()

	cancel()

	select {
	case <-done:
		assert.Equal(t, StateStopped, m.State())
	case <-time.After(time.Second):
		t.Fatal("merger did not stop after cancellation")
	}
}

func TestRun_MalformedLinesDiscarded(t *testing.T) {
	src := newFakeSource("pihole1",
		"complete garbage",
		"",
		queryLine("real.example.com", "10.0.0.1"),
	)
	src.end(nil)

	out := &captureEmitter{}
	m := New([]Source{src}, &fakeResolver{}, filter.Criteria{}, out,
		WithLogger(logger.Noop()))

	stats := m.Run(context.Background())

	records := out.Records()
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Detail, "real.example.com")
	assert.Equal(t, int64(1), stats.Unparsed)
}

func TestRun_VerbosePassesUnrecognizedLines(t *testing.T) {
	src := newFakeSource("pihole1",
		"Oct  4 14:18:46: forwarded example.com to 1.1.1.1",
	)
	src.end(nil)

	out := &captureEmitter{}
	m := New([]Source{src}, &fakeResolver{}, filter.Criteria{}, out,
		WithVerbose(true), WithLogger(logger.Noop()))

	m.Run(context.Background())

	records := out.Records()
	require.Len(t, records, 1)
	assert.Equal(t, event.ActionOther, records[0].Action)
}

func TestRun_VerboseSuppressedByFilters(t *testing.T) {
	src := newFakeSource("pihole1",
		"Oct  4 14:18:46: forwarded example.com to 1.1.1.1",
	)
	src.end(nil)

	out := &captureEmitter{}
	m := New([]Source{src}, &fakeResolver{}, filter.Criteria{Identity: "macbook"}, out,
		WithVerbose(true), WithLogger(logger.Noop()))

	m.Run(context.Background())

	// Unrecognized lines have no client for the filter to match against.
	assert.Empty(t, out.Records())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "one-source-down", StateOneSourceDown.String())
	assert.Equal(t, "stopped", StateStopped.String())
}
