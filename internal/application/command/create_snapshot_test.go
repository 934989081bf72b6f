package command

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olympus-hub/classroom-olympics/internal/domain/award"
	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
	"github.com/olympus-hub/classroom-olympics/internal/domain/snapshot"
)

type fakeSnapshotRepo struct {
	mu    sync.Mutex
	snaps []*snapshot.Snapshot
}

func newFakeSnapshotRepo() *fakeSnapshotRepo {
	return &fakeSnapshotRepo{}
}

func (r *fakeSnapshotRepo) Save(ctx context.Context, snap *snapshot.Snapshot, retention int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)

	var evicted []string
	if retention > 0 {
		for len(r.snaps) > retention {
			evicted = append(evicted, r.snaps[0].ID)
			r.snaps = r.snaps[1:]
		}
	}
	return evicted, nil
}

func (r *fakeSnapshotRepo) GetByID(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.snaps {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, shared.ErrSnapshotNotFound
}

func (r *fakeSnapshotRepo) GetLatest(ctx context.Context) (*snapshot.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return nil, shared.ErrSnapshotNotFound
	}
	return r.snaps[len(r.snaps)-1], nil
}

func (r *fakeSnapshotRepo) List(ctx context.Context, limit, offset int) ([]snapshot.Meta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]snapshot.Meta, 0)
	for i := len(r.snaps) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.snaps[i].ToMeta())
	}
	return out, nil
}

func (r *fakeSnapshotRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps), nil
}

func newSnapshotHandler(repo *fakePlayerRepo, snaps *fakeSnapshotRepo, pub *fakePublisher, retention int) *CreateSnapshotHandler {
	return NewCreateSnapshotHandler(repo, snaps, pub, CreateSnapshotHandlerConfig{
		Retention:      retention,
		AcademicPeriod: "2026-autumn",
	})
}

func TestCreateSnapshot_CapturesAllPlayers(t *testing.T) {
	repo := newFakePlayerRepo()
	snaps := newFakeSnapshotRepo()
	pub := newFakePublisher()
	seedPlayer(repo, "bob")
	seedPlayer(repo, "alia")

	apply := newApplyHandler(repo, newFakeActivityLog(), newFakePublisher())
	_, err := apply.Handle(context.Background(), ApplyAwardCommand{
		AwardID: "a1", Kind: award.KindXP, PlayerID: "bob", Amount: 300,
		QuestID: "sprint", IssuedBy: "i",
	})
	require.NoError(t, err)

	h := newSnapshotHandler(repo, snaps, pub, 10)

	result, err := h.Handle(context.Background(), CreateSnapshotCommand{
		TriggeredBy: snapshot.TriggerAutomatic,
	})
	require.NoError(t, err)

	snap := result.Snapshot
	assert.Equal(t, 2, snap.PlayerCount)
	assert.Equal(t, 300, snap.TotalXPRecorded)
	assert.Equal(t, "2026-autumn", snap.AcademicPeriod)
	assert.NoError(t, snap.Verify())

	// Records are sorted by player ID regardless of storage order.
	ids := []string{snap.Players[0].ID, snap.Players[1].ID}
	assert.True(t, sort.StringsAreSorted(ids))

	assert.Empty(t, result.Evicted)
	assert.Contains(t, pub.eventTypes(), shared.EventSnapshotCreated)
}

func TestCreateSnapshot_RecordsDenseRanksByTotalXP(t *testing.T) {
	repo := newFakePlayerRepo()
	snaps := newFakeSnapshotRepo()
	seedPlayer(repo, "first")
	seedPlayer(repo, "tied-a")
	seedPlayer(repo, "tied-b")
	seedPlayer(repo, "last")

	apply := newApplyHandler(repo, newFakeActivityLog(), newFakePublisher())
	grants := map[string]int{"first": 500, "tied-a": 200, "tied-b": 200}
	for id, amount := range grants {
		_, err := apply.Handle(context.Background(), ApplyAwardCommand{
			AwardID: "xp-" + id, Kind: award.KindXP, PlayerID: id,
			Amount: amount, QuestID: "sprint", IssuedBy: "i",
		})
		require.NoError(t, err)
	}

	h := newSnapshotHandler(repo, snaps, newFakePublisher(), 10)
	result, err := h.Handle(context.Background(), CreateSnapshotCommand{
		TriggeredBy: snapshot.TriggerAutomatic,
	})
	require.NoError(t, err)

	ranks := make(map[string]int, 4)
	for _, rec := range result.Snapshot.Players {
		ranks[rec.ID] = rec.CurrentRank
	}

	// Dense ranking: the tie shares rank 2, the zero-XP player takes 3.
	assert.Equal(t, 1, ranks["first"])
	assert.Equal(t, 2, ranks["tied-a"])
	assert.Equal(t, 2, ranks["tied-b"])
	assert.Equal(t, 3, ranks["last"])

	// The ranks are part of the checksummed record.
	assert.NoError(t, result.Snapshot.Verify())
}

func TestCreateSnapshot_ManualRequiresIssuer(t *testing.T) {
	repo := newFakePlayerRepo()
	seedPlayer(repo, "p1")
	h := newSnapshotHandler(repo, newFakeSnapshotRepo(), newFakePublisher(), 10)

	_, err := h.Handle(context.Background(), CreateSnapshotCommand{
		TriggeredBy: snapshot.TriggerManual,
	})
	assert.ErrorIs(t, err, snapshot.ErrIssuerRequired)

	result, err := h.Handle(context.Background(), CreateSnapshotCommand{
		TriggeredBy: snapshot.TriggerManual,
		IssuedBy:    "instructor:alia",
	})
	require.NoError(t, err)
	assert.Equal(t, "instructor:alia", result.Snapshot.IssuedBy)
}

func TestCreateSnapshot_RetentionEvictsOldest(t *testing.T) {
	repo := newFakePlayerRepo()
	snaps := newFakeSnapshotRepo()
	seedPlayer(repo, "p1")

	h := newSnapshotHandler(repo, snaps, newFakePublisher(), 2)

	first, err := h.Handle(context.Background(), CreateSnapshotCommand{TriggeredBy: snapshot.TriggerAutomatic})
	require.NoError(t, err)
	_, err = h.Handle(context.Background(), CreateSnapshotCommand{TriggeredBy: snapshot.TriggerAutomatic})
	require.NoError(t, err)

	third, err := h.Handle(context.Background(), CreateSnapshotCommand{TriggeredBy: snapshot.TriggerAutomatic})
	require.NoError(t, err)

	assert.Equal(t, []string{first.Snapshot.ID}, third.Evicted)

	count, err := snaps.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCreateSnapshot_EmptyClassroom(t *testing.T) {
	h := newSnapshotHandler(newFakePlayerRepo(), newFakeSnapshotRepo(), newFakePublisher(), 10)

	result, err := h.Handle(context.Background(), CreateSnapshotCommand{
		TriggeredBy: snapshot.TriggerAutomatic,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Snapshot.PlayerCount)
	assert.NoError(t, result.Snapshot.Verify())
}
