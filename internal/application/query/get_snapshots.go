package query

import (
	"context"
	"errors"
	"time"

	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
	"github.com/olympus-hub/classroom-olympics/internal/domain/snapshot"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT QUERIES
// Listing the rolling snapshot log and exporting a verified snapshot.
// ══════════════════════════════════════════════════════════════════════════════

// ListSnapshotsQuery contains pagination for the snapshot log.
type ListSnapshotsQuery struct {
	// Limit is the maximum number of snapshots (default 20, max 100).
	Limit int

	// Offset is the pagination offset.
	Offset int
}

// Validate checks the query parameters.
func (q *ListSnapshotsQuery) Validate() error {
	if q.Limit < 0 || q.Offset < 0 {
		return errors.New("limit and offset cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}

// SnapshotMetaDTO is the read model for one snapshot without player records.
type SnapshotMetaDTO struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	TriggeredBy     string    `json:"triggered_by"`
	IssuedBy        string    `json:"issued_by,omitempty"`
	AcademicPeriod  string    `json:"academic_period"`
	PlayerCount     int       `json:"player_count"`
	TotalXPRecorded int       `json:"total_xp_recorded"`
	Checksum        string    `json:"checksum"`
}

// ListSnapshotsResult contains the snapshot log page.
type ListSnapshotsResult struct {
	Snapshots   []SnapshotMetaDTO `json:"snapshots"`
	TotalCount  int               `json:"total_count"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// ListSnapshotsHandler handles the ListSnapshotsQuery.
type ListSnapshotsHandler struct {
	snapshotRepo snapshot.Repository
}

// NewListSnapshotsHandler creates a new ListSnapshotsHandler.
func NewListSnapshotsHandler(snapshotRepo snapshot.Repository) *ListSnapshotsHandler {
	return &ListSnapshotsHandler{snapshotRepo: snapshotRepo}
}

// Handle executes the list snapshots query.
func (h *ListSnapshotsHandler) Handle(ctx context.Context, q ListSnapshotsQuery) (*ListSnapshotsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "ListSnapshots", shared.ErrValidation, err.Error(), err)
	}

	metas, err := h.snapshotRepo.List(ctx, q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}

	total, err := h.snapshotRepo.Count(ctx)
	if err != nil {
		total = len(metas)
	}

	dtos := make([]SnapshotMetaDTO, len(metas))
	for i, m := range metas {
		dtos[i] = SnapshotMetaDTO{
			ID:              m.ID,
			CreatedAt:       m.CreatedAt,
			TriggeredBy:     string(m.TriggeredBy),
			IssuedBy:        m.IssuedBy,
			AcademicPeriod:  m.AcademicPeriod,
			PlayerCount:     m.PlayerCount,
			TotalXPRecorded: m.TotalXPRecorded,
			Checksum:        m.Checksum,
		}
	}

	return &ListSnapshotsResult{
		Snapshots:   dtos,
		TotalCount:  total,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT SNAPSHOT QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ExportSnapshotQuery identifies the snapshot to export.
// Empty ID means the latest snapshot.
type ExportSnapshotQuery struct {
	SnapshotID string
}

// ExportSnapshotHandler handles the ExportSnapshotQuery.
type ExportSnapshotHandler struct {
	snapshotRepo snapshot.Repository
}

// NewExportSnapshotHandler creates a new ExportSnapshotHandler.
func NewExportSnapshotHandler(snapshotRepo snapshot.Repository) *ExportSnapshotHandler {
	return &ExportSnapshotHandler{snapshotRepo: snapshotRepo}
}

// Handle loads the snapshot, verifies its checksum, and returns the
// export envelope. A corrupt snapshot is surfaced, never silently exported.
func (h *ExportSnapshotHandler) Handle(ctx context.Context, q ExportSnapshotQuery) (*snapshot.Export, error) {
	var (
		snap *snapshot.Snapshot
		err  error
	)
	if q.SnapshotID == "" {
		snap, err = h.snapshotRepo.GetLatest(ctx)
	} else {
		snap, err = h.snapshotRepo.GetByID(ctx, q.SnapshotID)
	}
	if err != nil {
		return nil, err
	}

	if err := snap.Verify(); err != nil {
		return nil, shared.ErrChecksumMismatch
	}

	export := snap.ToExport()
	return &export, nil
}
