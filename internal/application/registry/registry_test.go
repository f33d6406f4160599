package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mafia-engine/mafia-engine/internal/domain/game"
	"github.com/mafia-engine/mafia-engine/internal/domain/game/mocks"
)

// memoryRepo is an in-memory game.Repository for tests.
type memoryRepo struct {
	mu       sync.Mutex
	sessions map[int64]*game.Session
	saves    int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{sessions: make(map[int64]*game.Session)}
}

func (r *memoryRepo) Save(ctx context.Context, s *game.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s.Clone()
	r.saves++
	return nil
}

func (r *memoryRepo) GetByID(ctx context.Context, id int64) (*game.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (r *memoryRepo) ListIDs(ctx context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func newTestRegistry(t *testing.T, repo game.Repository) *Registry {
	t.Helper()
	r := New(repo, zerolog.Nop())
	t.Cleanup(r.Close)
	return r
}

func TestCreateAndSnapshot(t *testing.T) {
	reg := newTestRegistry(t, newMemoryRepo())
	ctx := context.Background()

	s, err := reg.Create(ctx, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, game.PhaseLobby, s.Phase)

	snap, err := reg.Snapshot(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), snap.ID)
	assert.Equal(t, int64(1), snap.HostID)
}

func TestCreateDuplicateFails(t *testing.T) {
	reg := newTestRegistry(t, newMemoryRepo())
	ctx := context.Background()

	_, err := reg.Create(ctx, 100, 1)
	require.NoError(t, err)
	_, err = reg.Create(ctx, 100, 2)
	assert.ErrorIs(t, err, game.ErrSessionExists)
}

func TestCreateHydratesStoredSession(t *testing.T) {
	repo := newMemoryRepo()
	stored := game.NewSession(100, 1)
	stored.Phase = game.PhaseNight
	require.NoError(t, repo.Save(context.Background(), stored))

	reg := newTestRegistry(t, repo)
	_, err := reg.Create(context.Background(), 100, 2)
	assert.ErrorIs(t, err, game.ErrSessionExists)

	// the stored session is now live in memory
	snap, err := reg.Snapshot(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, game.PhaseNight, snap.Phase)
}

func TestUpdateMutatesAndPersists(t *testing.T) {
	repo := newMemoryRepo()
	reg := newTestRegistry(t, repo)
	ctx := context.Background()

	_, err := reg.Create(ctx, 100, 1)
	require.NoError(t, err)

	err = reg.Update(ctx, 100, func(g *game.Session) error {
		g.Players[7] = game.NewPlayer(7, "ana")
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, reg.FlushAll(ctx))
	stored, err := repo.GetByID(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Contains(t, stored.Players, int64(7))
}

func TestUpdateErrorDoesNotDirty(t *testing.T) {
	reg := newTestRegistry(t, newMemoryRepo())
	ctx := context.Background()

	_, err := reg.Create(ctx, 100, 1)
	require.NoError(t, err)

	wantErr := errors.New("nope")
	err = reg.Update(ctx, 100, func(g *game.Session) error {
		g.Players[7] = game.NewPlayer(7, "ana")
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestSnapshotIsIsolated(t *testing.T) {
	reg := newTestRegistry(t, newMemoryRepo())
	ctx := context.Background()

	_, err := reg.Create(ctx, 100, 1)
	require.NoError(t, err)
	require.NoError(t, reg.Update(ctx, 100, func(g *game.Session) error {
		g.Players[7] = game.NewPlayer(7, "ana")
		return nil
	}))

	snap, err := reg.Snapshot(ctx, 100)
	require.NoError(t, err)
	snap.Players[7].Alive = false

	again, err := reg.Snapshot(ctx, 100)
	require.NoError(t, err)
	assert.True(t, again.Players[7].Alive, "snapshot mutation must not leak")
}

func TestUpdateUnknownSession(t *testing.T) {
	reg := newTestRegistry(t, newMemoryRepo())
	err := reg.Update(context.Background(), 404, func(g *game.Session) error { return nil })
	assert.True(t, IsNotFound(err))
}

func TestRemoveDeletesEverywhere(t *testing.T) {
	repo := newMemoryRepo()
	reg := newTestRegistry(t, repo)
	ctx := context.Background()

	_, err := reg.Create(ctx, 100, 1)
	require.NoError(t, err)
	require.NoError(t, reg.Remove(ctx, 100))

	_, err = reg.Snapshot(ctx, 100)
	assert.True(t, IsNotFound(err))
	assert.Empty(t, reg.IDs())
}

func TestLoadAllHydrates(t *testing.T) {
	repo := newMemoryRepo()
	for _, id := range []int64{100, 200} {
		require.NoError(t, repo.Save(context.Background(), game.NewSession(id, 1)))
	}
	reg := newTestRegistry(t, repo)

	loaded, err := reg.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
	assert.Len(t, reg.IDs(), 2)
}

func TestFindPending(t *testing.T) {
	reg := newTestRegistry(t, newMemoryRepo())
	ctx := context.Background()

	_, err := reg.Create(ctx, 100, 1)
	require.NoError(t, err)
	require.NoError(t, reg.Update(ctx, 100, func(g *game.Session) error {
		g.Pending["k1"] = &game.PendingAction{Key: "k1", SessionID: 100, Kind: game.KindHeal}
		return nil
	}))

	id, ok := reg.FindPending("k1")
	assert.True(t, ok)
	assert.Equal(t, int64(100), id)

	_, ok = reg.FindPending("missing")
	assert.False(t, ok)
}

func TestConcurrentUpdates(t *testing.T) {
	reg := newTestRegistry(t, newMemoryRepo())
	ctx := context.Background()

	_, err := reg.Create(ctx, 100, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			_ = reg.Update(ctx, 100, func(g *game.Session) error {
				g.Players[n] = game.NewPlayer(n, "p")
				return nil
			})
		}(int64(i))
	}
	wg.Wait()

	snap, err := reg.Snapshot(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, snap.Players, 50)
}

func TestPersistFailureKeepsSessionDirty(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockRepository(ctrl)
	repo.EXPECT().GetByID(gomock.Any(), int64(100)).Return(nil, nil)
	repo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("db down")).AnyTimes()

	reg := newTestRegistry(t, repo)
	_, err := reg.Create(context.Background(), 100, 1)
	require.NoError(t, err)

	// the in-memory session stays authoritative even though storage fails
	err = reg.FlushAll(context.Background())
	assert.Error(t, err)
	snap, snapErr := reg.Snapshot(context.Background(), 100)
	require.NoError(t, snapErr)
	assert.Equal(t, int64(100), snap.ID)
}
