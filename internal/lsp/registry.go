package lsp

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/swiftlens/swiftlens/internal/logging"
)

// RegistryConfig configures the session registry.
type RegistryConfig struct {
	// Process defines how backend processes are launched.
	Process ProcessConfig

	// Timeouts is the deadline policy handed to every session.
	Timeouts Timeouts

	// IdleTimeout evicts sessions that served no operation for this long.
	// Zero disables idle eviction. Default: 10 minutes.
	IdleTimeout time.Duration
}

// DefaultRegistryConfig returns the standard registry configuration.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Process:     DefaultProcessConfig(),
		Timeouts:    DefaultTimeouts(),
		IdleTimeout: 10 * time.Minute,
	}
}

// sessionEntry is the registry slot for one project root. Creation in
// progress is represented by an unready entry; concurrent acquirers wait on
// ready and share the outcome of the single creation attempt.
type sessionEntry struct {
	ready chan struct{}
	sess  *Session
	err   error
}

// Registry maps project roots to sessions. It is the only shared mutable
// state in the core: every insert, lookup-or-create, and removal is atomic
// with respect to the others, and a failure for one root never touches
// sessions for other roots.
type Registry struct {
	cfg RegistryConfig
	log *logging.AppLogger

	mu      sync.Mutex
	entries map[string]*sessionEntry
	closed  bool

	idleStop chan struct{}
	idleOnce sync.Once
	stopOnce sync.Once
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig, log *logging.AppLogger) *Registry {
	return &Registry{
		cfg:      cfg,
		log:      log,
		entries:  make(map[string]*sessionEntry),
		idleStop: make(chan struct{}),
	}
}

// Acquire returns the live session for root, creating one if needed.
// Concurrent acquires for the same root converge on a single creation:
// exactly one process start happens and every caller receives the same
// session (or the same error). The caller borrows the session for one
// operation; the registry retains ownership.
func (r *Registry) Acquire(ctx context.Context, root string) (*Session, error) {
	root = filepath.Clean(root)

	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return nil, ErrRegistryClosed
		}

		if e, ok := r.entries[root]; ok {
			r.mu.Unlock()

			select {
			case <-e.ready:
			case <-ctx.Done():
				return nil, ctx.Err()
			}

			if e.err != nil {
				return nil, e.err
			}
			if e.sess.State() == StateReady {
				return e.sess, nil
			}
			// Stale entry (degraded or closed): replace, never revive.
			r.evictEntry(root, e)
			continue
		}

		e := &sessionEntry{ready: make(chan struct{})}
		r.entries[root] = e
		r.mu.Unlock()

		sess, err := OpenSession(root, r.cfg.Process, r.cfg.Timeouts, r.log)
		if err != nil {
			e.err = err
			close(e.ready)
			r.mu.Lock()
			if cur, ok := r.entries[root]; ok && cur == e {
				delete(r.entries, root)
			}
			r.mu.Unlock()
			return nil, err
		}

		sess.setOnFatal(func(root string) {
			r.evictSession(root, sess)
		})
		e.sess = sess
		close(e.ready)

		if r.log != nil {
			r.log.Info("opened session", "root", root, "pid", sess.PID())
		}
		return sess, nil
	}
}

// Evict removes and closes the session for root, if any.
func (r *Registry) Evict(root string) {
	root = filepath.Clean(root)

	r.mu.Lock()
	e, ok := r.entries[root]
	if ok {
		delete(r.entries, root)
	}
	r.mu.Unlock()

	if ok {
		closeEntry(e)
		if r.log != nil {
			r.log.Info("evicted session", "root", root)
		}
	}
}

// evictEntry removes entry e for root only if it is still the current one.
func (r *Registry) evictEntry(root string, e *sessionEntry) {
	r.mu.Lock()
	if cur, ok := r.entries[root]; ok && cur == e {
		delete(r.entries, root)
	}
	r.mu.Unlock()
	closeEntry(e)
}

// evictSession removes the entry for root only if it still holds sess.
// Guards against evicting a replacement session created after a failure.
func (r *Registry) evictSession(root string, sess *Session) {
	r.mu.Lock()
	e, ok := r.entries[root]
	if ok && e.sess == sess {
		delete(r.entries, root)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		closeEntry(e)
		if r.log != nil {
			r.log.Warn("evicted failed session", "root", root)
		}
	}
}

func closeEntry(e *sessionEntry) {
	<-e.ready
	if e.sess != nil {
		e.sess.Close()
	}
}

// Sessions returns a snapshot of the live sessions.
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	entries := make([]*sessionEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	sessions := make([]*Session, 0, len(entries))
	for _, e := range entries {
		select {
		case <-e.ready:
			if e.sess != nil {
				sessions = append(sessions, e.sess)
			}
		default:
			// creation still in flight
		}
	}
	return sessions
}

// StartIdleMonitor begins periodic idle eviction. No-op when IdleTimeout is
// zero. Safe to call once; stops when ShutdownAll runs.
func (r *Registry) StartIdleMonitor() {
	if r.cfg.IdleTimeout <= 0 {
		return
	}
	r.idleOnce.Do(func() {
		interval := r.cfg.IdleTimeout / 4
		if interval < time.Second {
			interval = time.Second
		}
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-r.idleStop:
					return
				case <-ticker.C:
					r.evictIdle()
				}
			}
		}()
	})
}

// evictIdle closes sessions that served nothing for longer than IdleTimeout.
func (r *Registry) evictIdle() {
	cutoff := time.Now().Add(-r.cfg.IdleTimeout)
	for _, sess := range r.Sessions() {
		if sess.LastUsed().Before(cutoff) {
			if r.log != nil {
				r.log.Info("idle-evicting session", "root", sess.Root(), "last_used", sess.LastUsed())
			}
			r.evictSession(sess.Root(), sess)
		}
	}
}

// ShutdownAll closes every live session and refuses further acquires.
// Used at process-wide teardown. Idempotent.
func (r *Registry) ShutdownAll() {
	r.stopOnce.Do(func() { close(r.idleStop) })

	r.mu.Lock()
	r.closed = true
	entries := make([]*sessionEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.entries = make(map[string]*sessionEntry)
	r.mu.Unlock()

	for _, e := range entries {
		closeEntry(e)
	}
}
