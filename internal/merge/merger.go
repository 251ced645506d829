// Package merge is the concurrency core: it consumes the live line streams
// of all monitored hosts in parallel and emits a single arrival-ordered,
// filtered, identity-resolved sequence of display records.
package merge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/dnstail/internal/event"
	"github.com/rileyhilliard/dnstail/internal/filter"
	"github.com/rileyhilliard/dnstail/internal/logger"
)

// Source is one live, non-restartable line stream. Lines() yields raw lines
// until the stream ends or fails; after the channel closes, Err() reports
// the terminal error (nil for a clean end). Close releases the underlying
// channel and causes Lines() to close.
type Source interface {
	Label() string
	Lines() <-chan string
	Err() error
	Close() error
}

// Resolver maps a client address to a display name. Resolve blocks until
// the name is known or ctx is done; the merger always calls it off the
// reader path.
type Resolver interface {
	Resolve(ctx context.Context, addr string) string
}

// Emitter receives finished records and one-line status notices.
// ui.Printer satisfies it.
type Emitter interface {
	Record(rec event.Record)
	Notice(msg string)
}

// State describes where the merger is in its lifecycle.
type State int32

const (
	// StateRunning means all sources are being read.
	StateRunning State = iota
	// StateOneSourceDown means a source ended or failed; the rest are
	// still being drained.
	StateOneSourceDown
	// StateStopped means every source is down or the run was canceled.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateOneSourceDown:
		return "one-source-down"
	default:
		return "stopped"
	}
}

// Stats summarizes a run for the final summary line.
type Stats struct {
	Lines        int64 // Raw lines received across all sources
	Shown        int64 // Records emitted
	Blocked      int64 // Blocked-query records emitted
	Suppressed   int64 // Events dropped by filter criteria
	Unparsed     int64 // Lines that matched no recognized shape
	SourceErrors int64 // Sources that ended with an error
}

// pending is one event waiting its turn at the ordering point. The ready
// channel is the completion handle for the asynchronous identity
// resolution: emission waits on it in dequeue order, so arrival order is
// preserved even when resolutions finish out of order.
type pending struct {
	ev    event.Event
	name  string
	ready chan struct{}
}

// resolveGrace bounds how long shutdown waits for the in-flight
// resolution of the record currently being emitted.
const resolveGrace = 2 * time.Second

// Merger fans all sources into one bounded queue and emits in arrival order.
type Merger struct {
	sources  []Source
	resolver Resolver
	criteria filter.Criteria
	out      Emitter

	verbose  bool
	queueCap int
	log      logger.Logger

	state  atomic.Int32
	active atomic.Int32

	lines        atomic.Int64
	shown        atomic.Int64
	blocked      atomic.Int64
	suppressed   atomic.Int64
	unparsed     atomic.Int64
	sourceErrors atomic.Int64
}

// Option configures a Merger.
type Option func(*Merger)

// WithVerbose passes unrecognized lines through (only when no filter
// criteria are set, as filters cannot apply to lines with no client).
func WithVerbose(v bool) Option {
	return func(m *Merger) { m.verbose = v }
}

// WithQueueSize sets the ordering queue capacity.
func WithQueueSize(n int) Option {
	return func(m *Merger) {
		if n > 0 {
			m.queueCap = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(m *Merger) { m.log = log }
}

// New creates a merger over the given sources.
func New(sources []Source, resolver Resolver, criteria filter.Criteria, out Emitter, opts ...Option) *Merger {
	m := &Merger{
		sources:  sources,
		resolver: resolver,
		criteria: criteria,
		out:      out,
		queueCap: 256,
		log:      logger.NewEnvLogger("[merge]"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current lifecycle state.
func (m *Merger) State() State {
	return State(m.state.Load())
}

// Run consumes all sources until every one ends or ctx is canceled, and
// returns the run's stats. One reader goroutine per source timestamps,
// parses, and submits events to the shared queue; the emit loop dequeues
// strictly in submission order.
func (m *Merger) Run(ctx context.Context) Stats {
	queue := make(chan *pending, m.queueCap)

	m.active.Store(int32(len(m.sources)))
	m.state.Store(int32(StateRunning))

	var wg sync.WaitGroup
	for _, src := range m.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			m.read(ctx, src, queue)
		}(src)
	}
	go func() {
		wg.Wait()
		close(queue)
	}()

	defer func() {
		m.state.Store(int32(StateStopped))
		for _, src := range m.sources {
			if err := src.Close(); err != nil {
				m.log.Debug("closing %s: %v", src.Label(), err)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return m.snapshot()
		case p, ok := <-queue:
			if !ok {
				return m.snapshot()
			}
			m.emit(ctx, p)
		}
	}
}

// read is the per-source reader task. It suspends only while waiting for
// the source's next line, stamps and parses each line immediately, and
// submits the candidate to the ordering queue. Resolution is kicked off
// here but never waited on, so a slow lookup can't delay either source.
func (m *Merger) read(ctx context.Context, src Source, queue chan<- *pending) {
	parser := event.NewParser(src.Label())

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-src.Lines():
			if !ok {
				m.sourceDown(src)
				return
			}
			m.lines.Add(1)

			ev, ok := parser.Parse(line, time.Now())
			if !ok {
				continue
			}

			if ev.Action == event.ActionOther {
				m.unparsed.Add(1)
				// Unrecognized lines pass through only in verbose mode
				// with no filters active; they carry no client for the
				// filter to match against.
				if !m.verbose || !m.criteria.Empty() {
					continue
				}
			}

			// Blocked-only suppression happens before enqueue: the
			// action is known at parse time and suppressed events need
			// no resolution.
			if m.criteria.BlockedOnly && ev.Action != event.ActionBlocked {
				m.suppressed.Add(1)
				continue
			}

			p := &pending{ev: ev, ready: make(chan struct{})}
			if ev.Client == "" {
				close(p.ready)
			} else {
				go func() {
					p.name = m.resolver.Resolve(ctx, p.ev.Client)
					close(p.ready)
				}()
			}

			select {
			case queue <- p:
			case <-ctx.Done():
				return
			}
		}
	}
}

// sourceDown records the end of one source. A single source going away is
// a degradation, not a failure: the operator gets one notice and the
// remaining source keeps streaming.
func (m *Merger) sourceDown(src Source) {
	if err := src.Err(); err != nil {
		m.sourceErrors.Add(1)
		m.out.Notice(fmt.Sprintf("%s disconnected: %v", src.Label(), err))
	} else {
		m.out.Notice(fmt.Sprintf("%s stream ended", src.Label()))
	}

	if m.active.Add(-1) > 0 {
		m.state.CompareAndSwap(int32(StateRunning), int32(StateOneSourceDown))
		m.out.Notice("continuing with remaining host")
	}
}

// emit waits for the record's resolution handle, applies the identity
// criterion, and writes the record. The wait is in dequeue order, which
// serializes emission back into arrival order. On cancellation the wait is
// bounded by a short grace period, falling back to the raw address.
func (m *Merger) emit(ctx context.Context, p *pending) {
	var name string
	select {
	case <-p.ready:
		name = p.name
	case <-ctx.Done():
		select {
		case <-p.ready:
			name = p.name
		case <-time.After(resolveGrace):
			name = p.ev.Client
		}
	}
	if name == "" {
		name = p.ev.Client
	}

	if !m.criteria.Matches(p.ev, name) {
		m.suppressed.Add(1)
		return
	}

	m.out.Record(event.Record{Event: p.ev, ClientName: name})
	m.shown.Add(1)
	if p.ev.Action == event.ActionBlocked {
		m.blocked.Add(1)
	}
}

func (m *Merger) snapshot() Stats {
	return Stats{
		Lines:        m.lines.Load(),
		Shown:        m.shown.Load(),
		Blocked:      m.blocked.Load(),
		Suppressed:   m.suppressed.Load(),
		Unparsed:     m.unparsed.Load(),
		SourceErrors: m.sourceErrors.Load(),
	}
}
