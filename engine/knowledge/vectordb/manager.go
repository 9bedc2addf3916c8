package vectordb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Manager hands out reference-counted stores keyed by Config.ID. The CLI,
// the HTTP server and the watch loop can all hold the same index without
// opening a second connection or file handle.
type Manager struct {
	mu     sync.Mutex
	leases map[string]*lease
	opens  singleflight.Group
}

type lease struct {
	store     Store
	signature string
	refs      int
}

func NewManager() *Manager {
	return &Manager{leases: make(map[string]*lease)}
}

// AcquireShared returns the store for cfg and a release func. Concurrent first
// acquisitions open the backend once; the last release closes it. A different
// configuration under an ID that is already open is an error.
func (m *Manager) AcquireShared(ctx context.Context, cfg *Config) (Store, func(context.Context) error, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, nil, err
	}
	id := strings.TrimSpace(cfg.ID)
	sig := signatureKey(cfg)
	for {
		v, err, _ := m.opens.Do(id, func() (any, error) {
			if l := m.lookup(id); l != nil {
				return l, nil
			}
			store, err := instantiateStore(ctx, cfg)
			if err != nil {
				return nil, err
			}
			l := &lease{store: store, signature: sig}
			m.mu.Lock()
			m.leases[id] = l
			m.mu.Unlock()
			return l, nil
		})
		if err != nil {
			return nil, nil, err
		}
		l := v.(*lease)
		m.mu.Lock()
		if m.leases[id] != l {
			// Released and closed between the open and this lock.
			m.mu.Unlock()
			continue
		}
		if l.signature != sig {
			m.mu.Unlock()
			return nil, nil, fmt.Errorf("vector_db %q: configuration mismatch for shared store", id)
		}
		l.refs++
		m.mu.Unlock()
		return l.store, m.releaser(id, l), nil
	}
}

func (m *Manager) lookup(id string) *lease {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leases[id]
}

func (m *Manager) releaser(id string, l *lease) func(context.Context) error {
	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			m.mu.Lock()
			if m.leases[id] != l {
				m.mu.Unlock()
				return
			}
			l.refs--
			last := l.refs <= 0
			if last {
				delete(m.leases, id)
			}
			m.mu.Unlock()
			if last {
				err = l.store.Close(ctx)
			}
		})
		return err
	}
}

// Len reports how many distinct stores are open.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.leases)
}

// CloseAll closes every open store regardless of outstanding references.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	leases := m.leases
	m.leases = make(map[string]*lease)
	m.mu.Unlock()
	var errs []error
	for id, l := range leases {
		if err := l.store.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("vector_db %q: close: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// signatureKey captures every setting that changes which backend a Config opens.
func signatureKey(cfg *Config) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%d|%t|%d|%p",
		cfg.Provider,
		strings.TrimSpace(cfg.DSN),
		strings.TrimSpace(cfg.Path),
		strings.TrimSpace(cfg.Table),
		strings.TrimSpace(cfg.Collection),
		strings.TrimSpace(cfg.Metric),
		cfg.Dimension,
		cfg.EnsureIndex,
		cfg.MaxTopK,
		cfg.Fs,
	)
}
