// Package catalogcache keeps one live catalog handle per catalog name and
// evicts handles a fixed time after they were built.
package catalogcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"icegate/internal/domain"
)

// DefaultTTL is the write TTL applied when Options.TTL is zero.
const DefaultTTL = time.Hour

// Options configures a Manager.
type Options struct {
	// TTL is measured from the moment a handle was built; reads do not extend it.
	TTL time.Duration
	// SweepInterval controls how often expired handles are closed in the
	// background. Zero derives it from TTL. Cron cannot tick faster than once
	// per second.
	SweepInterval time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

type entry struct {
	handle    domain.CatalogHandle
	writtenAt time.Time
}

// Manager caches catalog handles keyed by catalog name.
//
// Concurrent Get calls for a missing name share a single BuildHandle call.
// A failed build is never cached. Every handle leaves the cache exactly once,
// by expiry, invalidation or shutdown, and is closed when it leaves.
type Manager struct {
	provider domain.CatalogProvider
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	group singleflight.Group
	cron  *cron.Cron

	mu      sync.Mutex
	entries map[string]*entry
	started bool
	closed  bool
}

// New creates a Manager that builds handles with provider. Call Start to run
// the background sweeper.
func New(provider domain.CatalogProvider, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = opts.TTL / 4
	}
	if opts.SweepInterval < time.Second {
		opts.SweepInterval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		provider: provider,
		ttl:      opts.TTL,
		interval: opts.SweepInterval,
		now:      opts.Now,
		logger:   opts.Logger,
		cron:     cron.New(),
		entries:  make(map[string]*entry),
	}
}

// Start schedules the background sweep. Calling it more than once, or after
// Shutdown, does nothing.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.closed {
		return
	}
	m.started = true
	m.cron.Schedule(cron.Every(m.interval), cron.FuncJob(func() { m.Sweep() }))
	m.cron.Start()
	m.logger.Info("catalog cache sweeper started", "ttl", m.ttl, "interval", m.interval)
}

// Get returns the live handle for name, building it if needed, and refreshes
// its credentials before handing it out. A refresh failure is reported as a
// RefreshError and leaves the entry cached.
//
// A concurrent Sweep or Invalidate may close the handle between lookup and
// refresh. Get then drops it and looks the name up once more.
func (m *Manager) Get(ctx context.Context, name string) (domain.CatalogHandle, error) {
	for attempt := 0; ; attempt++ {
		h, err := m.lookup(ctx, name)
		if err != nil {
			return nil, err
		}
		err = h.RefreshCredentials(ctx)
		if err == nil {
			return h, nil
		}
		if errors.Is(err, domain.ErrHandleClosed) && attempt == 0 {
			m.forget(name, h)
			continue
		}
		return nil, &domain.RefreshError{Catalog: name, Err: err}
	}
}

// forget drops name's entry if it still holds h. h is already closed.
func (m *Manager) forget(name string, h domain.CatalogHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[name]; ok && e.handle == h {
		delete(m.entries, name)
	}
	m.logger.Debug("dropped closed catalog handle", "catalog", name)
}

func (m *Manager) lookup(ctx context.Context, name string) (domain.CatalogHandle, error) {
	if h, ok, err := m.cached(name); ok || err != nil {
		return h, err
	}

	v, err, _ := m.group.Do(name, func() (any, error) {
		if h, ok, err := m.cached(name); ok || err != nil {
			return h, err
		}

		// Waiters share this build; cancelling the leader must not fail them.
		h, err := m.provider.BuildHandle(context.WithoutCancel(ctx), name)
		if err != nil {
			m.logger.Warn("build catalog handle failed", "catalog", name, "error", err)
			return nil, &domain.ConstructionError{Catalog: name, Err: err}
		}
		if h == nil {
			return nil, &domain.ConstructionError{Catalog: name, Err: errors.New("provider returned no handle")}
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			m.closeHandle(name, h, "shutdown")
			return nil, domain.ErrManagerClosed
		}
		prev := m.entries[name]
		m.entries[name] = &entry{handle: h, writtenAt: m.now()}
		m.mu.Unlock()

		if prev != nil {
			m.closeHandle(name, prev.handle, "replaced")
		}
		m.logger.Debug("catalog handle cached", "catalog", name)
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(domain.CatalogHandle), nil
}

// cached returns the live entry for name. An expired entry is removed and
// closed, and reported as a miss.
func (m *Manager) cached(name string) (domain.CatalogHandle, bool, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, false, domain.ErrManagerClosed
	}
	e, ok := m.entries[name]
	if !ok {
		m.mu.Unlock()
		return nil, false, nil
	}
	if !m.expired(e, m.now()) {
		m.mu.Unlock()
		return e.handle, true, nil
	}
	delete(m.entries, name)
	m.mu.Unlock()

	m.closeHandle(name, e.handle, "expired")
	return nil, false, nil
}

func (m *Manager) expired(e *entry, now time.Time) bool {
	return !now.Before(e.writtenAt.Add(m.ttl))
}

// Sweep closes every expired handle and returns how many were evicted.
func (m *Manager) Sweep() int {
	now := m.now()

	m.mu.Lock()
	var evicted map[string]*entry
	for name, e := range m.entries {
		if m.expired(e, now) {
			if evicted == nil {
				evicted = make(map[string]*entry)
			}
			evicted[name] = e
			delete(m.entries, name)
		}
	}
	m.mu.Unlock()

	for name, e := range evicted {
		m.closeHandle(name, e.handle, "expired")
	}
	if len(evicted) > 0 {
		m.logger.Info("catalog cache swept", "evicted", len(evicted))
	}
	return len(evicted)
}

// Invalidate removes and closes the handle cached for name. It reports
// whether a handle was present.
func (m *Manager) Invalidate(name string) bool {
	m.mu.Lock()
	e, ok := m.entries[name]
	if ok {
		delete(m.entries, name)
	}
	m.mu.Unlock()

	if ok {
		m.closeHandle(name, e.handle, "invalidated")
	}
	return ok
}

// Entries describes the live handles, ordered by catalog name.
func (m *Manager) Entries() []domain.CachedCatalog {
	m.mu.Lock()
	out := make([]domain.CachedCatalog, 0, len(m.entries))
	for name, e := range m.entries {
		out = append(out, domain.CachedCatalog{
			Name:      name,
			WrittenAt: e.writtenAt,
			ExpiresAt: e.writtenAt.Add(m.ttl),
		})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Keys returns the cached catalog names in order.
func (m *Manager) Keys() []string {
	entries := m.Entries()
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Name
	}
	return keys
}

// Len returns the number of cached handles, expired or not.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Shutdown stops the sweeper, closes every cached handle and then the
// provider if it holds resources. Later calls return nil; Get returns
// domain.ErrManagerClosed from then on.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	entries := m.entries
	m.entries = make(map[string]*entry)
	started := m.started
	m.mu.Unlock()

	if started {
		select {
		case <-m.cron.Stop().Done():
		case <-ctx.Done():
			m.logger.Warn("catalog cache sweeper did not stop in time", "error", ctx.Err())
		}
	}

	for name, e := range entries {
		m.closeHandle(name, e.handle, "shutdown")
	}
	m.logger.Info("catalog cache shut down", "closed", len(entries))

	if c, ok := m.provider.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close catalog provider: %w", err)
		}
	}
	return nil
}

func (m *Manager) closeHandle(name string, h domain.CatalogHandle, reason string) {
	if err := h.Close(); err != nil {
		m.logger.Warn("close catalog handle failed",
			"reason", reason,
			"error", &domain.CloseError{Catalog: name, Err: err},
		)
		return
	}
	m.logger.Debug("catalog handle closed", "catalog", name, "reason", reason)
}
