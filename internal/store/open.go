package store

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Backend is a checkpoint database serving one or more domains.
type Backend interface {
	Checkpoints(domain string) Checkpoints
	Close() error
}

// BackendFactory opens a backend for a DSN.
type BackendFactory func(dsn string) (Backend, error)

var backendRegistry = struct {
	mu        sync.RWMutex
	factories map[string]BackendFactory
}{
	factories: map[string]BackendFactory{},
}

// RegisterBackend makes a backend available under a DSN scheme.
// Registered factories take precedence over the built-in schemes.
func RegisterBackend(scheme string, factory BackendFactory) {
	scheme = normalizeScheme(scheme)
	if scheme == "" || factory == nil {
		return
	}
	backendRegistry.mu.Lock()
	defer backendRegistry.mu.Unlock()
	backendRegistry.factories[scheme] = factory
}

func lookupBackend(scheme string) (BackendFactory, bool) {
	backendRegistry.mu.RLock()
	defer backendRegistry.mu.RUnlock()
	f, ok := backendRegistry.factories[normalizeScheme(scheme)]
	return f, ok
}

// Open opens the backend named by dsn:
//
//	/var/lib/husk/husk.db          SQLite file
//	sqlite:///var/lib/husk/husk.db SQLite file
//	postgres://user@host/db        Postgres
//	memory://                      in-process
func Open(dsn string) (Backend, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrInvalidDSN
	}

	scheme, rest, hasScheme := strings.Cut(dsn, "://")
	if !hasScheme {
		return openSQLiteBackend(dsn)
	}
	if f, ok := lookupBackend(scheme); ok {
		return f(dsn)
	}

	switch normalizeScheme(scheme) {
	case "sqlite", "sqlite3", "file":
		path := rest
		if u, err := url.Parse(dsn); err == nil && u.Path != "" {
			path = u.Host + u.Path
		}
		if path == "" {
			return nil, fmt.Errorf("%w: missing sqlite path in %q", ErrInvalidDSN, dsn)
		}
		return openSQLiteBackend(path)
	case "postgres", "postgresql":
		p, err := NewPostgres(dsn)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "memory", "mem":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidDSN, scheme)
	}
}

func openSQLiteBackend(path string) (Backend, error) {
	s, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func normalizeScheme(scheme string) string {
	return strings.ToLower(strings.TrimSpace(scheme))
}
