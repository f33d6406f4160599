// Package registry owns the in-memory session map, the per-session locking
// discipline and the asynchronous persistence path. Every mutating
// operation on a session goes through Update, which holds that session's
// lock; the durable write happens outside the lock on a tracked worker so
// gameplay never blocks on storage.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mafia-engine/mafia-engine/internal/domain/game"
)

const persistTimeout = 5 * time.Second

type entry struct {
	mu      sync.Mutex
	session *game.Session
	version uint64 // bumped per mutation; a save only clears dirty for its own version
	dirty   bool
}

// Registry maps session ids to live sessions, backed by the store.
type Registry struct {
	mu      sync.RWMutex
	entries map[int64]*entry

	repo   game.Repository
	logger zerolog.Logger

	persistCh chan int64
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a registry and starts its persistence worker. Call Close on
// shutdown (after FlushAll) to stop the worker.
func New(repo game.Repository, logger zerolog.Logger) *Registry {
	r := &Registry{
		entries:   make(map[int64]*entry),
		repo:      repo,
		logger:    logger.With().Str("service", "registry").Logger(),
		persistCh: make(chan int64, 256),
		done:      make(chan struct{}),
	}
	r.wg.Add(1)
	go r.persistLoop()
	return r
}

// LoadAll hydrates every persisted session into memory. Used at startup so
// deadlines can be re-armed.
func (r *Registry) LoadAll(ctx context.Context) ([]int64, error) {
	ids, err := r.repo.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	loaded := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, err := r.lookup(ctx, id); err != nil {
			r.logger.Warn().Err(err).Int64("session_id", id).Msg("failed to hydrate session")
			continue
		}
		loaded = append(loaded, id)
	}
	r.logger.Info().Int("count", len(loaded)).Msg("sessions loaded from store")
	return loaded, nil
}

// Create registers a new session. It fails with ErrSessionExists when the
// id is already live or present in the store; in the latter case the
// stored session is hydrated into memory so callers can keep using it.
func (r *Registry) Create(ctx context.Context, id, hostID int64) (*game.Session, error) {
	r.mu.RLock()
	_, exists := r.entries[id]
	r.mu.RUnlock()
	if exists {
		return nil, game.ErrSessionExists
	}

	stored, err := r.repo.GetByID(ctx, id)
	if err != nil {
		r.logger.Warn().Err(err).Int64("session_id", id).Msg("store lookup failed on create; proceeding in memory")
	}
	if stored != nil {
		r.adopt(stored)
		return nil, game.ErrSessionExists
	}

	s := game.NewSession(id, hostID)
	e := &entry{session: s, dirty: true, version: 1}
	r.mu.Lock()
	if _, raced := r.entries[id]; raced {
		r.mu.Unlock()
		return nil, game.ErrSessionExists
	}
	r.entries[id] = e
	r.mu.Unlock()

	r.enqueue(id)
	return s.Clone(), nil
}

// Snapshot returns a deep copy of the session for lock-free reads,
// hydrating from the store when the session is not in memory. A snapshot
// of a dirty session re-enqueues its persist as a reconciliation pass.
func (r *Registry) Snapshot(ctx context.Context, id int64) (*game.Session, error) {
	e, err := r.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	snap := e.session.Clone()
	dirty := e.dirty
	e.mu.Unlock()
	if dirty {
		r.enqueue(id)
	}
	return snap, nil
}

// Update runs fn on the live session under its exclusive lock, then
// schedules a durable write. fn returning an error aborts without marking
// the session dirty; fn must not retain the *Session past its return.
func (r *Registry) Update(ctx context.Context, id int64, fn func(*game.Session) error) error {
	e, err := r.lookup(ctx, id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	if err := fn(e.session); err != nil {
		e.mu.Unlock()
		return err
	}
	e.session.Touch()
	e.version++
	e.dirty = true
	e.mu.Unlock()

	r.enqueue(id)
	return nil
}

// Remove drops the session from memory and the store.
func (r *Registry) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
	if err := r.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session %d: %w", id, err)
	}
	return nil
}

// IDs lists the ids of all live sessions.
func (r *Registry) IDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// FindPending locates the live session holding a pending-action key.
func (r *Registry) FindPending(key string) (int64, bool) {
	for _, id := range r.IDs() {
		r.mu.RLock()
		e := r.entries[id]
		r.mu.RUnlock()
		if e == nil {
			continue
		}
		e.mu.Lock()
		_, ok := e.session.Pending[key]
		e.mu.Unlock()
		if ok {
			return id, true
		}
	}
	return 0, false
}

// FlushAll forces a synchronous durable write for every dirty session,
// bounded by ctx. Used on shutdown.
func (r *Registry) FlushAll(ctx context.Context) error {
	var firstErr error
	for _, id := range r.IDs() {
		r.mu.RLock()
		e := r.entries[id]
		r.mu.RUnlock()
		if e == nil {
			continue
		}
		e.mu.Lock()
		dirty := e.dirty
		snap := e.session.Clone()
		version := e.version
		e.mu.Unlock()
		if !dirty {
			continue
		}
		if err := r.repo.Save(ctx, snap); err != nil {
			r.logger.Error().Err(err).Int64("session_id", id).Msg("flush failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		r.clearDirty(e, version)
	}
	return firstErr
}

// Close stops the persistence worker and waits for in-flight writes.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
}

// lookup finds the live entry, hydrating from the store on demand.
func (r *Registry) lookup(ctx context.Context, id int64) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if ok {
		return e, nil
	}

	stored, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %d: %w", id, err)
	}
	if stored == nil {
		return nil, game.ErrSessionNotFound
	}
	return r.adopt(stored), nil
}

// adopt inserts a stored session into memory, keeping an already-raced
// live entry if one appeared meanwhile.
func (r *Registry) adopt(s *game.Session) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[s.ID]; ok {
		return e
	}
	e := &entry{session: s}
	r.entries[s.ID] = e
	r.logger.Info().Int64("session_id", s.ID).Str("phase", string(s.Phase)).Msg("session hydrated from store")
	return e
}

// enqueue schedules an async persist. A full queue is tolerated: the entry
// stays dirty and the next mutation or snapshot re-enqueues it.
func (r *Registry) enqueue(id int64) {
	select {
	case r.persistCh <- id:
	default:
		r.logger.Warn().Int64("session_id", id).Msg("persist queue full; write deferred")
	}
}

func (r *Registry) persistLoop() {
	defer r.wg.Done()
	for {
		select {
		case id := <-r.persistCh:
			r.persistOne(id)
		case <-r.done:
			// drain what is already queued before exiting
			for {
				select {
				case id := <-r.persistCh:
					r.persistOne(id)
				default:
					return
				}
			}
		}
	}
}

func (r *Registry) persistOne(id int64) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return
	}
	e.mu.Lock()
	if !e.dirty {
		e.mu.Unlock()
		return
	}
	snap := e.session.Clone()
	version := e.version
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := r.repo.Save(ctx, snap); err != nil {
		// the in-memory session stays authoritative; the entry stays
		// dirty and is retried on the next mutation or snapshot
		r.logger.Error().Err(err).Int64("session_id", id).Msg("persist failed")
		return
	}
	r.clearDirty(e, version)
}

func (r *Registry) clearDirty(e *entry, version uint64) {
	e.mu.Lock()
	if e.version == version {
		e.dirty = false
	}
	e.mu.Unlock()
}

// IsNotFound reports whether err is the session-missing error.
func IsNotFound(err error) bool {
	return errors.Is(err, game.ErrSessionNotFound)
}
