package query

import (
	"context"
	"errors"
	"time"

	"github.com/olympus-hub/classroom-olympics/internal/domain/award"
	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACTIVITY LOG QUERY
// Returns applied-award history, filtered by player, issuer, or time window.
// Backs the instructor audit view.
// ══════════════════════════════════════════════════════════════════════════════

// Activity log filter limits.
const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// GetActivityLogQuery contains filters for the activity log.
// Exactly one of PlayerID, IssuedBy, or Since must be set.
type GetActivityLogQuery struct {
	// PlayerID filters entries applied to one player.
	PlayerID string

	// IssuedBy filters entries issued by one instructor.
	IssuedBy string

	// Since filters entries applied at or after this time.
	Since time.Time

	// Limit is the maximum number of entries (default 50, max 500).
	Limit int
}

// Validate checks the query parameters.
func (q *GetActivityLogQuery) Validate() error {
	set := 0
	if q.PlayerID != "" {
		set++
	}
	if q.IssuedBy != "" {
		set++
	}
	if !q.Since.IsZero() {
		set++
	}
	if set != 1 {
		return errors.New("exactly one of player_id, issued_by, or since is required")
	}

	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = defaultLogLimit
	}
	if q.Limit > maxLogLimit {
		q.Limit = maxLogLimit
	}
	return nil
}

// LogEntryDTO is the read model for one activity-log entry.
type LogEntryDTO struct {
	ID            string       `json:"id"`
	AwardID       string       `json:"award_id"`
	PlayerID      string       `json:"player_id"`
	Kind          string       `json:"kind"`
	Amount        int          `json:"amount"`
	Deltas        award.Deltas `json:"deltas"`
	Description   string       `json:"description,omitempty"`
	IssuedBy      string       `json:"issued_by"`
	AppliedAt     time.Time    `json:"applied_at"`
	ResultVersion int64        `json:"result_version"`
}

// GetActivityLogResult contains the matching entries.
type GetActivityLogResult struct {
	Entries     []LogEntryDTO `json:"entries"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// GetActivityLogHandler handles the GetActivityLogQuery.
type GetActivityLogHandler struct {
	activityLog award.ActivityLog
}

// NewGetActivityLogHandler creates a new GetActivityLogHandler.
func NewGetActivityLogHandler(activityLog award.ActivityLog) *GetActivityLogHandler {
	return &GetActivityLogHandler{activityLog: activityLog}
}

// Handle executes the get activity log query.
func (h *GetActivityLogHandler) Handle(ctx context.Context, q GetActivityLogQuery) (*GetActivityLogResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetActivityLog", shared.ErrValidation, err.Error(), err)
	}

	var (
		entries []*award.LogEntry
		err     error
	)
	switch {
	case q.PlayerID != "":
		entries, err = h.activityLog.ListByPlayer(ctx, q.PlayerID, q.Limit)
	case q.IssuedBy != "":
		entries, err = h.activityLog.ListByIssuer(ctx, q.IssuedBy, q.Limit)
	default:
		entries, err = h.activityLog.ListSince(ctx, q.Since, q.Limit)
	}
	if err != nil {
		return nil, err
	}

	dtos := make([]LogEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = LogEntryDTO{
			ID:            e.ID,
			AwardID:       e.AwardID,
			PlayerID:      e.PlayerID,
			Kind:          e.Kind.String(),
			Amount:        e.Amount,
			Deltas:        e.Deltas,
			Description:   e.Description,
			IssuedBy:      e.IssuedBy,
			AppliedAt:     e.AppliedAt,
			ResultVersion: e.ResultVersion,
		}
	}

	return &GetActivityLogResult{
		Entries:     dtos,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
