// Package loader owns the knowledge-base lifecycle: fetching a bundle from a
// Source, building an immutable snapshot and publishing it to readers.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/dd0wney/cluso-attackgraph/pkg/logging"
	"github.com/dd0wney/cluso-attackgraph/pkg/metrics"
	"github.com/dd0wney/cluso-attackgraph/pkg/model"
	"github.com/dd0wney/cluso-attackgraph/pkg/snapshot"
)

// State is the lifecycle phase of a Manager
type State string

const (
	StateUnloaded State = "UNLOADED"
	StateLoading  State = "LOADING"
	StateReady    State = "READY"
)

// Mode selects how a reader behaves while the first load is in flight
type Mode int

const (
	// Block waits for the in-flight load, bounded by the caller's context
	Block Mode = iota
	// NoWait fails immediately with ErrNotLoaded
	NoWait
)

// DefaultLoadTimeout bounds a single fetch-and-build when Options leaves it unset
const DefaultLoadTimeout = 2 * time.Minute

// status is the immutable record published through Manager.current. State and
// snapshot always change together.
type status struct {
	state    State
	snap     *snapshot.Snapshot
	lastErr  error
	loads    int
	failures int
	done     chan struct{} // closed when the in-flight load settles; nil otherwise
}

// Status is a point-in-time view of the manager
type Status struct {
	State      State      `json:"state"`
	Source     string     `json:"source"`
	SnapshotID string     `json:"snapshot_id,omitempty"`
	LoadedAt   *time.Time `json:"loaded_at,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	Loads      int        `json:"loads"`
	Failures   int        `json:"failures"`
}

// Options configures a Manager
type Options struct {
	Logger      logging.Logger
	Metrics     *metrics.Registry
	Tracer      trace.Tracer
	LoadTimeout time.Duration
}

// Manager is the Cache/Load Manager. Readers call Snapshot; they never take
// the mutex, which only serialises state transitions.
type Manager struct {
	source  Source
	logger  logging.Logger
	metrics *metrics.Registry
	tracer  trace.Tracer
	timeout time.Duration

	mu      sync.Mutex
	current atomic.Pointer[status]
	group   singleflight.Group
}

// NewManager creates a manager in the Unloaded state. Nothing is fetched
// until Load or Run is called.
func NewManager(source Source, opts Options) *Manager {
	m := &Manager{
		source:  source,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
		timeout: opts.LoadTimeout,
	}
	if m.logger == nil {
		m.logger = logging.NewNopLogger()
	}
	m.logger = m.logger.With(logging.Component("loader"), logging.Source(source.Name()))
	if m.tracer == nil {
		m.tracer = otel.Tracer("github.com/dd0wney/cluso-attackgraph/pkg/loader")
	}
	if m.timeout <= 0 {
		m.timeout = DefaultLoadTimeout
	}
	m.current.Store(&status{state: StateUnloaded})
	return m
}

// Load fetches the source and publishes a new snapshot. Concurrent calls
// share one in-flight load. The load itself is detached from ctx; ctx only
// bounds how long this caller waits for the shared result.
func (m *Manager) Load(ctx context.Context) (*snapshot.Snapshot, error) {
	base := context.WithoutCancel(ctx)
	ch := m.group.DoChan("load", func() (any, error) {
		return m.load(base)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*snapshot.Snapshot), nil
	case <-ctx.Done():
		return nil, model.CancelledError("load", ctx.Err())
	}
}

func (m *Manager) load(ctx context.Context) (snap *snapshot.Snapshot, err error) {
	done := m.begin()
	defer close(done)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	ctx, span := m.tracer.Start(ctx, "loader.load", trace.WithAttributes(attribute.String("source", m.source.Name())))
	defer span.End()

	timer := logging.StartTimer(m.logger, "load finished", logging.Operation("load"))
	defer func() {
		if r := recover(); r != nil {
			snap, err = nil, fmt.Errorf("load panicked: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			timer.EndError(err)
		} else {
			span.SetAttributes(attribute.String("snapshot_id", snap.ID))
			timer.End(logging.SnapshotID(snap.ID))
		}
		m.finish(snap, err, timer.Elapsed())
	}()

	bundle, err := m.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", m.source.Name(), err)
	}
	snap, err = snapshot.Build(bundle, snapshot.Options{Source: m.source.Name(), Logger: m.logger})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// begin moves to Loading, keeping any published snapshot servable
func (m *Manager) begin() chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.current.Load()
	done := make(chan struct{})
	m.current.Store(&status{
		state:    StateLoading,
		snap:     prev.snap,
		lastErr:  prev.lastErr,
		loads:    prev.loads,
		failures: prev.failures,
		done:     done,
	})
	m.logger.Info("load started", logging.Bool("reload", prev.snap != nil))
	return done
}

// finish publishes the outcome. A failed first load returns to Unloaded; a
// failed reload keeps serving the previous snapshot.
func (m *Manager) finish(snap *snapshot.Snapshot, err error, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.current.Load()
	next := &status{loads: prev.loads, failures: prev.failures}

	if err != nil {
		next.failures++
		next.lastErr = err
		next.snap = prev.snap
		next.state = StateUnloaded
		if prev.snap != nil {
			next.state = StateReady
			m.logger.Warn("reload failed, keeping previous snapshot", logging.SnapshotID(prev.snap.ID), logging.Error(err))
		}
		m.current.Store(next)
		if m.metrics != nil {
			m.metrics.RecordLoad(metrics.LoadFailure, elapsed)
		}
		return
	}

	next.loads++
	next.snap = snap
	next.state = StateReady
	m.current.Store(next)

	if m.metrics != nil {
		m.metrics.RecordLoad(metrics.LoadSuccess, elapsed)
		m.metrics.UpdateSnapshot(metrics.SnapshotSizes{
			Techniques:    snap.Stats.Entities.Techniques,
			Tactics:       snap.Stats.Entities.Tactics,
			Groups:        snap.Stats.Entities.Groups,
			Mitigations:   snap.Stats.Entities.Mitigations,
			Relationships: snap.Stats.Relationships,
			Dropped:       snap.Stats.DroppedRelationships,
			Warnings:      len(snap.Warnings),
		})
	}
}

// Snapshot returns the published snapshot. Once any load has succeeded every
// reader gets a snapshot without waiting, including during reloads.
func (m *Manager) Snapshot(ctx context.Context, mode Mode) (*snapshot.Snapshot, error) {
	for {
		st := m.current.Load()
		if st.snap != nil {
			return st.snap, nil
		}
		if st.state != StateLoading {
			return nil, notLoaded(st.lastErr)
		}
		if mode == NoWait {
			return nil, model.NewError("snapshot").Cause(model.ErrNotLoaded).Context("not ready: initial load in progress").Err()
		}
		select {
		case <-st.done:
		case <-ctx.Done():
			return nil, model.CancelledError("snapshot", ctx.Err())
		}
	}
}

func notLoaded(lastErr error) error {
	b := model.NewError("snapshot").Cause(model.ErrNotLoaded)
	if lastErr != nil {
		b.Context("last load failed: " + lastErr.Error())
	}
	return b.Err()
}

// Status reports the current lifecycle state
func (m *Manager) Status() Status {
	st := m.current.Load()
	out := Status{
		State:    st.state,
		Source:   m.source.Name(),
		Loads:    st.loads,
		Failures: st.failures,
	}
	if st.snap != nil {
		out.SnapshotID = st.snap.ID
		loadedAt := st.snap.LoadedAt
		out.LoadedAt = &loadedAt
	}
	if st.lastErr != nil {
		out.LastError = st.lastErr.Error()
	}
	return out
}

// Ready reports whether a snapshot is published
func (m *Manager) Ready() bool {
	return m.current.Load().snap != nil
}

// Run is the load worker: one initial load, then a full reload every
// interval until ctx is done. interval <= 0 disables periodic reloads.
// Load failures are logged and retried on the next tick.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	if _, err := m.Load(ctx); err != nil && !errors.Is(err, model.ErrCancelled) {
		m.logger.Error("initial load failed", logging.Error(err))
	}

	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := m.Load(ctx); err != nil && !errors.Is(err, model.ErrCancelled) {
				m.logger.Error("scheduled reload failed", logging.Error(err))
			}
		}
	}
}
