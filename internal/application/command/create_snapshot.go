package command

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
	"github.com/olympus-hub/classroom-olympics/internal/domain/snapshot"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE SNAPSHOT COMMAND
// Captures a checksummed record of every player's progress and stores it in
// the rolling snapshot log, evicting the oldest entries beyond retention.
// ══════════════════════════════════════════════════════════════════════════════

// snapshotPageSize bounds one page when reading all players.
const snapshotPageSize = 500

// CreateSnapshotCommand contains the data to create a snapshot.
type CreateSnapshotCommand struct {
	// TriggeredBy is automatic (scheduler) or manual (instructor).
	TriggeredBy snapshot.Trigger

	// IssuedBy identifies the instructor for manual snapshots.
	IssuedBy string

	// CorrelationID for tracing.
	CorrelationID string
}

// CreateSnapshotResult contains the stored snapshot and eviction info.
type CreateSnapshotResult struct {
	// Snapshot is the stored snapshot.
	Snapshot *snapshot.Snapshot

	// Evicted lists IDs of snapshots removed to honor retention.
	Evicted []string

	// Events contains domain events generated.
	Events []shared.Event
}

// CreateSnapshotHandler handles the CreateSnapshotCommand.
type CreateSnapshotHandler struct {
	playerRepo     player.Repository
	snapshotRepo   snapshot.Repository
	eventPublisher shared.EventPublisher

	retention      int
	academicPeriod string
}

// CreateSnapshotHandlerConfig contains configuration for the handler.
type CreateSnapshotHandlerConfig struct {
	// Retention is how many snapshots to keep. Zero means the default.
	Retention int

	// AcademicPeriod labels snapshots, e.g. "2026-fall".
	AcademicPeriod string
}

// NewCreateSnapshotHandler creates a new CreateSnapshotHandler.
func NewCreateSnapshotHandler(
	playerRepo player.Repository,
	snapshotRepo snapshot.Repository,
	eventPublisher shared.EventPublisher,
	config CreateSnapshotHandlerConfig,
) *CreateSnapshotHandler {
	if config.Retention <= 0 {
		config.Retention = snapshot.DefaultRetention
	}

	return &CreateSnapshotHandler{
		playerRepo:     playerRepo,
		snapshotRepo:   snapshotRepo,
		eventPublisher: eventPublisher,
		retention:      config.Retention,
		academicPeriod: config.AcademicPeriod,
	}
}

// Handle executes the create snapshot command.
func (h *CreateSnapshotHandler) Handle(ctx context.Context, cmd CreateSnapshotCommand) (*CreateSnapshotResult, error) {
	records, err := h.collectRecords(ctx)
	if err != nil {
		return nil, err
	}

	snap, err := snapshot.New(snapshot.NewSnapshotParams{
		ID:             uuid.NewString(),
		TriggeredBy:    cmd.TriggeredBy,
		IssuedBy:       cmd.IssuedBy,
		AcademicPeriod: h.academicPeriod,
		Players:        records,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("create_snapshot: %w", err)
	}

	evicted, err := h.snapshotRepo.Save(ctx, snap, h.retention)
	if err != nil {
		return nil, fmt.Errorf("create_snapshot: failed to save snapshot: %w", err)
	}

	event := shared.NewSnapshotCreatedEvent(
		snap.ID, string(snap.TriggeredBy), snap.PlayerCount, snap.TotalXPRecorded, snap.Checksum,
	)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &CreateSnapshotResult{
		Snapshot: snap,
		Evicted:  evicted,
		Events:   []shared.Event{event},
	}, nil
}

// collectRecords pages through all players and freezes their progress.
// Ranks are recomputed from total XP at snapshot time rather than read
// back from any index, so the snapshot is self-consistent even when the
// rank index is stale or unavailable.
func (h *CreateSnapshotHandler) collectRecords(ctx context.Context) ([]snapshot.PlayerRecord, error) {
	states := make([]*player.State, 0)

	opts := player.DefaultListOptions().
		WithLimit(snapshotPageSize).
		WithSort("id", false)

	for offset := 0; ; offset += snapshotPageSize {
		page, err := h.playerRepo.GetAll(ctx, opts.WithOffset(offset))
		if err != nil {
			return nil, fmt.Errorf("create_snapshot: failed to list players: %w", err)
		}
		states = append(states, page...)
		if len(page) < snapshotPageSize {
			break
		}
	}

	assignDenseRanks(states)

	records := make([]snapshot.PlayerRecord, 0, len(states))
	for _, state := range states {
		records = append(records, snapshot.RecordFromState(state))
	}
	return records, nil
}

// assignDenseRanks ranks players by total XP, descending. Equal totals
// share a rank and the next distinct total takes the next one, so ranks
// run 1, 1, 2 rather than 1, 1, 3 after a tie.
func assignDenseRanks(states []*player.State) {
	ranked := make([]*player.State, len(states))
	copy(ranked, states)
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].TotalXP > ranked[j].TotalXP })

	rank := 0
	lastXP := player.XP(-1)
	for _, s := range ranked {
		if s.TotalXP != lastXP {
			rank++
			lastXP = s.TotalXP
		}
		s.UpdateRank(player.Rank(rank))
	}
}
