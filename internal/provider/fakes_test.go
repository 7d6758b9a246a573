package provider

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apache/iceberg-go"
	"github.com/apache/iceberg-go/table"
)

type fakeBackend struct {
	props      iceberg.Properties
	namespaces []table.Identifier
	tables     []table.Identifier
	closed     atomic.Int32
}

func (b *fakeBackend) ListNamespaces(context.Context, table.Identifier) ([]table.Identifier, error) {
	return b.namespaces, nil
}

func (b *fakeBackend) ListTables(context.Context, table.Identifier) iter.Seq2[table.Identifier, error] {
	return func(yield func(table.Identifier, error) bool) {
		for _, t := range b.tables {
			if !yield(t, nil) {
				return
			}
		}
	}
}

func (b *fakeBackend) LoadTable(context.Context, table.Identifier, iceberg.Properties) (*table.Table, error) {
	return nil, errors.New("not implemented")
}

func (b *fakeBackend) Close() error {
	b.closed.Add(1)
	return nil
}

// recordingLoader hands out fakeBackends and remembers each one.
type recordingLoader struct {
	mu       sync.Mutex
	backends []*fakeBackend
	err      error
}

func (l *recordingLoader) load(_ context.Context, _ string, props iceberg.Properties) (Backend, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	b := &fakeBackend{props: props, namespaces: []table.Identifier{{"ns1"}, {"ns2"}}}
	l.backends = append(l.backends, b)
	return b, nil
}

func (l *recordingLoader) setErr(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}

func (l *recordingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.backends)
}

func (l *recordingLoader) last() *fakeBackend {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backends[len(l.backends)-1]
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testOptions(l *recordingLoader, clock *fakeClock) Options {
	opts := Options{
		Logger: slog.New(slog.DiscardHandler),
		Loader: l.load,
	}
	if clock != nil {
		opts.Now = clock.Now
	}
	return opts
}
