package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olympus-hub/classroom-olympics/internal/domain/award"
	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
)

func newBulkHandler(repo *fakePlayerRepo, log *fakeActivityLog, pub *fakePublisher) *BulkAwardHandler {
	apply := newApplyHandler(repo, log, pub)
	return NewBulkAwardHandler(apply, pub, DefaultBulkAwardHandlerConfig())
}

func goldTemplate() award.Template {
	return award.Template{
		ID:       "tpl-1",
		Kind:     award.KindGold,
		Amount:   5,
		IssuedBy: "instructor:alia",
	}
}

func TestDeriveAwardID(t *testing.T) {
	a := DeriveAwardID("tpl-1", "p1")
	b := DeriveAwardID("tpl-1", "p1")
	assert.Equal(t, a, b, "derivation must be deterministic")

	assert.NotEqual(t, a, DeriveAwardID("tpl-1", "p2"))
	assert.NotEqual(t, a, DeriveAwardID("tpl-2", "p1"))
}

func TestBulkAward_FanOut(t *testing.T) {
	repo := newFakePlayerRepo()
	log := newFakeActivityLog()
	pub := newFakePublisher()
	seedPlayer(repo, "p1")
	seedPlayer(repo, "p2")
	seedPlayer(repo, "p3")

	h := newBulkHandler(repo, log, pub)

	result, err := h.Handle(context.Background(), BulkAwardCommand{
		TemplateID: "tpl-1",
		Template:   goldTemplate(),
		TargetIDs:  []string{"p1", "p2", "p3"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalCount)
	assert.Equal(t, 3, result.SuccessCount)
	assert.Equal(t, 0, result.FailedCount)
	assert.Equal(t, 0, result.DuplicateCount)
	assert.Len(t, result.Results, 3)
	assert.Equal(t, 3, log.count())
	assert.Contains(t, pub.eventTypes(), shared.EventBulkCompleted)
}

func TestBulkAward_DuplicateTargetsCollapse(t *testing.T) {
	repo := newFakePlayerRepo()
	log := newFakeActivityLog()
	seedPlayer(repo, "p1")

	h := newBulkHandler(repo, log, newFakePublisher())

	result, err := h.Handle(context.Background(), BulkAwardCommand{
		TemplateID: "tpl-1",
		Template:   goldTemplate(),
		TargetIDs:  []string{"p1", "p1", "p1"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalCount)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, log.count())
}

func TestBulkAward_RetryOnlyReappliesFailures(t *testing.T) {
	repo := newFakePlayerRepo()
	log := newFakeActivityLog()
	seedPlayer(repo, "p1")

	h := newBulkHandler(repo, log, newFakePublisher())

	// First batch: p2 doesn't exist yet, p1 succeeds.
	first, err := h.Handle(context.Background(), BulkAwardCommand{
		TemplateID: "tpl-1",
		Template:   goldTemplate(),
		TargetIDs:  []string{"p1", "p2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first.SuccessCount)
	assert.Equal(t, 1, first.FailedCount)
	assert.Contains(t, first.Errors, "p2")

	// Retry after fixing the roster: p1 collapses to a duplicate, p2 applies.
	seedPlayer(repo, "p2")
	second, err := h.Handle(context.Background(), BulkAwardCommand{
		TemplateID: "tpl-1",
		Template:   goldTemplate(),
		TargetIDs:  []string{"p1", "p2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, second.SuccessCount)
	assert.Equal(t, 1, second.DuplicateCount)
	assert.Equal(t, 0, second.FailedCount)

	// p1 was not double-granted.
	state, err := repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), state.Version)
}

func TestBulkAward_PerPlayerTimeoutReportedAsTimeout(t *testing.T) {
	repo := newFakePlayerRepo()
	log := newFakeActivityLog()
	pub := newFakePublisher()
	seedPlayer(repo, "p1")
	repo.getDelay = 200 * time.Millisecond

	apply := newApplyHandler(repo, log, pub)
	h := NewBulkAwardHandler(apply, pub, BulkAwardHandlerConfig{
		PerPlayerTimeout: 20 * time.Millisecond,
	})

	result, err := h.Handle(context.Background(), BulkAwardCommand{
		TemplateID: "tpl-1",
		Template:   goldTemplate(),
		TargetIDs:  []string{"p1"},
	})
	require.NoError(t, err, "a timed-out player never aborts the batch")

	assert.Equal(t, 1, result.FailedCount)
	require.Contains(t, result.Errors, "p1")
	assert.ErrorIs(t, result.Errors["p1"], shared.ErrTimeout)
	assert.Equal(t, 0, log.count())
}

func TestBulkAward_Validation(t *testing.T) {
	h := newBulkHandler(newFakePlayerRepo(), newFakeActivityLog(), newFakePublisher())

	_, err := h.Handle(context.Background(), BulkAwardCommand{
		Template:  goldTemplate(),
		TargetIDs: []string{"p1"},
	})
	assert.Error(t, err, "missing template ID")

	_, err = h.Handle(context.Background(), BulkAwardCommand{
		TemplateID: "tpl-1",
		Template:   goldTemplate(),
	})
	assert.Error(t, err, "missing targets")

	bad := goldTemplate()
	bad.Amount = -1
	_, err = h.Handle(context.Background(), BulkAwardCommand{
		TemplateID: "tpl-1",
		Template:   bad,
		TargetIDs:  []string{"p1"},
	})
	assert.ErrorIs(t, err, award.ErrInvalidAmount)
}
