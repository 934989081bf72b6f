package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/olympus-hub/classroom-olympics/internal/domain/award"
	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BULK AWARD COMMAND
// Fans one award template out to many players. Per-player outcomes are
// independent: one failure never blocks or rolls back the others.
// Award IDs are derived deterministically from the template and the player,
// so retrying a partially failed batch only re-applies the failed players.
// ══════════════════════════════════════════════════════════════════════════════

// BulkAwardCommand contains an award template and its target players.
type BulkAwardCommand struct {
	// TemplateID identifies the bulk action; it seeds the derived award IDs.
	TemplateID string

	// Template describes the award each target receives.
	Template award.Template

	// TargetIDs are the players to award. Duplicates are collapsed.
	TargetIDs []string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c BulkAwardCommand) Validate() error {
	if c.TemplateID == "" {
		return fmt.Errorf("bulk_award: template_id is required")
	}
	if len(c.TargetIDs) == 0 {
		return fmt.Errorf("bulk_award: at least one target is required")
	}
	if err := c.Template.Validate(); err != nil {
		return fmt.Errorf("bulk_award: invalid template: %w", err)
	}
	return nil
}

// BulkAwardResult contains per-player outcomes of a bulk award.
type BulkAwardResult struct {
	// TemplateID is the bulk action identifier.
	TemplateID string

	// TotalCount is the number of unique targets.
	TotalCount int

	// SuccessCount is the number of players newly awarded.
	SuccessCount int

	// DuplicateCount is the number of players for whom the derived award
	// was already applied (counted separately from failures).
	DuplicateCount int

	// FailedCount is the number of players whose award failed.
	FailedCount int

	// Results holds the successful (and duplicate) per-player results.
	Results []*ApplyAwardResult

	// Errors maps player ID to the failure, for failed players only.
	Errors map[string]error

	// CompletedAt is when the fan-out finished.
	CompletedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// Fan-out bounds.
const (
	// defaultBulkConcurrency bounds parallel per-player applications.
	defaultBulkConcurrency = 8

	// defaultPerPlayerTimeout bounds one player's application so a stuck
	// player cannot stall the whole batch.
	defaultPerPlayerTimeout = 5 * time.Second
)

// BulkAwardHandler handles the BulkAwardCommand.
type BulkAwardHandler struct {
	apply          *ApplyAwardHandler
	eventPublisher shared.EventPublisher

	concurrency      int
	perPlayerTimeout time.Duration
}

// BulkAwardHandlerConfig contains configuration for the handler.
type BulkAwardHandlerConfig struct {
	Concurrency      int
	PerPlayerTimeout time.Duration
}

// DefaultBulkAwardHandlerConfig returns default configuration.
func DefaultBulkAwardHandlerConfig() BulkAwardHandlerConfig {
	return BulkAwardHandlerConfig{
		Concurrency:      defaultBulkConcurrency,
		PerPlayerTimeout: defaultPerPlayerTimeout,
	}
}

// NewBulkAwardHandler creates a new BulkAwardHandler.
func NewBulkAwardHandler(
	apply *ApplyAwardHandler,
	eventPublisher shared.EventPublisher,
	config BulkAwardHandlerConfig,
) *BulkAwardHandler {
	if config.Concurrency <= 0 {
		config.Concurrency = defaultBulkConcurrency
	}
	if config.PerPlayerTimeout <= 0 {
		config.PerPlayerTimeout = defaultPerPlayerTimeout
	}

	return &BulkAwardHandler{
		apply:            apply,
		eventPublisher:   eventPublisher,
		concurrency:      config.Concurrency,
		perPlayerTimeout: config.PerPlayerTimeout,
	}
}

// DeriveAwardID derives the award ID for one target of a bulk template.
// The derivation is a pure function of the template ID and the player ID,
// which is what makes batch retries idempotent per player.
func DeriveAwardID(templateID, playerID string) string {
	ns := uuid.NewSHA1(uuid.NameSpaceURL, []byte("award-template:"+templateID))
	return uuid.NewSHA1(ns, []byte(playerID)).String()
}

// Handle executes the bulk award command.
func (h *BulkAwardHandler) Handle(ctx context.Context, cmd BulkAwardCommand) (*BulkAwardResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	targets := dedupe(cmd.TargetIDs)

	result := &BulkAwardResult{
		TemplateID: cmd.TemplateID,
		TotalCount: len(targets),
		Results:    make([]*ApplyAwardResult, 0, len(targets)),
		Errors:     make(map[string]error),
	}

	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)

	for _, targetID := range targets {
		targetID := targetID
		g.Go(func() error {
			playerCtx, cancel := context.WithTimeout(gctx, h.perPlayerTimeout)
			defer cancel()

			applyCmd := ApplyAwardCommand{
				AwardID:       DeriveAwardID(cmd.TemplateID, targetID),
				Kind:          cmd.Template.Kind,
				PlayerID:      targetID,
				Amount:        cmd.Template.Amount,
				QuestID:       cmd.Template.QuestID,
				Skill:         cmd.Template.Skill,
				Description:   cmd.Template.Description,
				IssuedBy:      cmd.Template.IssuedBy,
				CorrelationID: cmd.CorrelationID,
			}

			applied, err := h.apply.Handle(playerCtx, applyCmd)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// A player that ran out of time is reported as a timeout,
				// not as whatever operation the deadline happened to cut.
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					err = shared.WrapError("award", "BulkApply", shared.ErrTimeout,
						fmt.Sprintf("player %s timed out after %s", targetID, h.perPlayerTimeout), err)
				}
				result.FailedCount++
				result.Errors[targetID] = err
				// Per-player failures never abort the batch.
				return nil
			}
			if applied.AlreadyApplied {
				result.DuplicateCount++
			} else {
				result.SuccessCount++
			}
			result.Results = append(result.Results, applied)
			return nil
		})
	}

	// Only a cancelled parent context can surface here.
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("bulk_award: fan-out aborted: %w", err)
	}

	result.CompletedAt = time.Now().UTC()

	event := shared.NewBulkAwardCompletedEvent(
		cmd.TemplateID, result.TotalCount, result.SuccessCount, result.FailedCount,
	)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return result, nil
}

// dedupe collapses duplicate target IDs preserving first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
