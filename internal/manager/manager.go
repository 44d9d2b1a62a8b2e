package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"companiond/internal/catalog"
	"companiond/internal/llm"
	"companiond/internal/storage"
)

var timeNow = time.Now

// Manager owns at most one loaded Handle and the Session bound to it.
// SelectModel and Shutdown are serialized by opMu; readers only take mu and
// never wait behind a load.
type Manager struct {
	opMu sync.Mutex

	mu       sync.RWMutex
	state    State
	err      string
	selected *catalog.Descriptor
	handle   *Handle
	session  *Session
	catalog  []catalog.Descriptor
	pub      EventPublisher

	store     storage.Store
	rt        llm.Runtime
	reserved  int
	log       zerolog.Logger
	bus       *Broadcaster
	loads     atomic.Uint64
	startTime time.Time
}

// New builds a Manager over a catalog with the given store and runtime.
func New(models []catalog.Descriptor, store storage.Store, rt llm.Runtime) *Manager {
	// Delegate to NewWithConfig to centralize defaults
	return NewWithConfig(ManagerConfig{Catalog: models, Store: store, Runtime: rt})
}

// SetEventPublisher installs p next to the internal broadcaster. nil restores
// the no-op publisher.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.mu.Lock()
	m.pub = p
	m.mu.Unlock()
}

// Subscribe returns a channel of manager and session events.
func (m *Manager) Subscribe(buf int) (<-chan Event, func()) {
	return m.bus.Subscribe(buf)
}

// Publish implements EventPublisher so sessions report through the manager.
func (m *Manager) Publish(e Event) {
	m.mu.RLock()
	p := m.pub
	m.mu.RUnlock()
	publishers{p, m.bus}.Publish(e)
}

// Runtime returns the configured runtime name.
func (m *Manager) Runtime() string {
	if m.rt == nil {
		return ""
	}
	return m.rt.Name()
}

// SelectModel makes desc the active model. Selecting the active descriptor
// again is a no-op. Otherwise the current session is closed, the current
// handle unloaded, and a new handle and session are created, in that order.
// Load errors are returned as is and leave the manager Failed.
func (m *Manager) SelectModel(ctx context.Context, desc catalog.Descriptor) error {
	desc = desc.WithDefaults()
	if err := desc.Validate(); err != nil {
		loadsTotal.WithLabelValues("config").Inc()
		return err
	}
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.selected != nil && *m.selected == desc && m.state == StateReady {
		m.mu.Unlock()
		m.log.Debug().Str("model", desc.Name).Msg("select_noop")
		return nil
	}
	sess, h := m.session, m.handle
	m.session, m.handle = nil, nil
	d := desc
	m.selected = &d
	m.state = StateLoading
	m.err = ""
	m.mu.Unlock()

	m.teardown(sess, h)

	m.log.Info().Str("model", desc.Name).Str("runtime", m.Runtime()).Msg("ensure_start")
	m.Publish(Event{Name: EventLoading, ModelID: desc.Name})
	start := timeNow()
	nh, err := LoadHandle(ctx, desc, m.store, m.rt)
	if err != nil {
		m.mu.Lock()
		m.state = StateFailed
		m.err = err.Error()
		m.mu.Unlock()
		outcome := "backend_init_failed"
		if IsFileNotFound(err) {
			outcome = "not_found"
		}
		loadsTotal.WithLabelValues(outcome).Inc()
		m.log.Error().Err(err).Str("model", desc.Name).Msg("ensure_error")
		m.Publish(Event{Name: EventFailed, ModelID: desc.Name, Fields: map[string]any{"error": err.Error()}})
		return err
	}
	ns := NewSession(nh, SessionOptions{Reserved: m.reserved, Logger: m.log, Publisher: m})

	m.mu.Lock()
	m.handle, m.session = nh, ns
	m.state = StateReady
	m.mu.Unlock()
	m.loads.Add(1)
	loadsTotal.WithLabelValues("ok").Inc()
	m.log.Info().Str("model", desc.Name).Str("path", nh.Path()).Dur("dur", time.Since(start)).Msg("load_ready")
	m.Publish(Event{Name: EventReady, ModelID: desc.Name, Fields: map[string]any{"path": nh.Path(), "session": ns.ID()}})
	return nil
}

// teardown closes sess before unloading h.
func (m *Manager) teardown(sess *Session, h *Handle) {
	if sess != nil {
		sess.Close()
	}
	if h == nil {
		return
	}
	if err := h.Unload(); err != nil {
		m.log.Warn().Err(err).Str("model", h.Descriptor().Name).Msg("unload_error")
	}
	unloadsTotal.Inc()
	m.log.Info().Str("model", h.Descriptor().Name).Msg("unload_done")
	m.Publish(Event{Name: EventUnloaded, ModelID: h.Descriptor().Name})
}

// SelectByName selects the catalog entry called name.
func (m *Manager) SelectByName(ctx context.Context, name string) error {
	m.mu.RLock()
	d, ok := catalog.Find(m.catalog, name)
	m.mu.RUnlock()
	if !ok {
		return ErrModelNotFound(name)
	}
	return m.SelectModel(ctx, d)
}

// ListModels returns a copy of the catalog.
func (m *Manager) ListModels() []catalog.Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]catalog.Descriptor, len(m.catalog))
	copy(out, m.catalog)
	return out
}

// Selected returns the selected descriptor, if any.
func (m *Manager) Selected() (catalog.Descriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.selected == nil {
		return catalog.Descriptor{}, false
	}
	return *m.selected, true
}

// CurrentSession returns the active session or nil.
func (m *Manager) CurrentSession() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// ResetCurrentSession resets the active session.
func (m *Manager) ResetCurrentSession() error {
	s := m.CurrentSession()
	if s == nil {
		return ErrNotSelected
	}
	return s.Reset()
}

// Ready reports whether a model is loaded and a session is available.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateReady && m.session != nil
}

// Shutdown closes the session, then unloads the handle. It is idempotent and
// leaves the manager Unselected.
func (m *Manager) Shutdown() {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	sess, h := m.session, m.handle
	wasSelected := m.selected != nil
	m.session, m.handle, m.selected = nil, nil, nil
	m.state = StateUnselected
	m.err = ""
	m.mu.Unlock()

	m.teardown(sess, h)
	if wasSelected {
		m.log.Info().Msg("shutdown_done")
		m.Publish(Event{Name: EventUnselected})
	}
}
