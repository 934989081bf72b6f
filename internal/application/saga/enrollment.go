// Package saga contains multi-step business processes that orchestrate
// several domain operations in a coordinated manner.
// Sagas ensure consistency across operations and handle compensation on failures.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/olympus-hub/classroom-olympics/internal/application/command"
	"github.com/olympus-hub/classroom-olympics/internal/domain/award"
	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT SAGA
// Business process: enrolling a new player into the classroom roster.
// Flow: Validate → Check Existence → Register Player → Grant Welcome Gold →
//
//	Publish Event
//
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentInput contains all data required to enroll a new player.
type EnrollmentInput struct {
	// PlayerID is the desired ID. Empty means the registrar generates one.
	PlayerID string

	// Quests are the player's quest slots. Empty means the classroom defaults.
	Quests []player.QuestID

	// EnrolledBy identifies the instructor performing the enrollment (required).
	EnrolledBy string
}

// Validate checks if the input is valid for enrollment.
func (i EnrollmentInput) Validate() error {
	if i.EnrolledBy == "" {
		return errors.New("enrollment: enrolled_by is required")
	}
	if len(i.Quests) != 0 && len(i.Quests) != player.QuestCount {
		return fmt.Errorf("enrollment: exactly %d quests are required when provided", player.QuestCount)
	}
	return nil
}

// EnrollmentResult contains the result of a successful enrollment.
type EnrollmentResult struct {
	// State - the newly created player state.
	State *player.State

	// WelcomeAwardID - idempotency key of the welcome gold grant.
	// Empty if the grant was skipped or failed.
	WelcomeAwardID string

	// WelcomeGold - amount of gold granted on enrollment.
	WelcomeGold int

	// EnrolledAt - timestamp of successful enrollment.
	EnrolledAt time.Time
}

// EnrollmentStep represents a step in the enrollment process.
type EnrollmentStep string

const (
	StepValidateInput  EnrollmentStep = "validate_input"
	StepCheckExistence EnrollmentStep = "check_existence"
	StepRegisterPlayer EnrollmentStep = "register_player"
	StepGrantWelcome   EnrollmentStep = "grant_welcome"
	StepPublishEvent   EnrollmentStep = "publish_event"
	StepComplete       EnrollmentStep = "complete"
)

// EnrollmentState tracks the current state of the enrollment saga.
type EnrollmentState struct {
	CurrentStep EnrollmentStep
	Input       EnrollmentInput
	Player      *player.State
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       error
	FailedStep  EnrollmentStep
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// PlayerRegistrar creates player records. Satisfied by command.RegisterPlayerHandler.
type PlayerRegistrar interface {
	Handle(ctx context.Context, cmd command.RegisterPlayerCommand) (*command.RegisterPlayerResult, error)
}

// AwardApplier applies idempotent awards. Satisfied by command.ApplyAwardHandler.
type AwardApplier interface {
	Handle(ctx context.Context, cmd command.ApplyAwardCommand) (*command.ApplyAwardResult, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT SAGA IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentSaga orchestrates the complete player enrollment process.
// It follows the Saga pattern to ensure consistency across multiple operations.
//
// There is no rollback step: the welcome grant carries a deterministic
// award ID derived from the player ID, so re-running a half-finished
// enrollment converges instead of double-granting.
type EnrollmentSaga struct {
	playerRepo player.Repository
	registrar  PlayerRegistrar
	awards     AwardApplier
	eventBus   shared.EventPublisher

	welcomeGold int
}

// EnrollmentConfig contains configuration for the enrollment saga.
type EnrollmentConfig struct {
	// WelcomeGold is granted to every newly enrolled player. Zero disables the grant.
	WelcomeGold int
}

// DefaultEnrollmentConfig returns default configuration.
func DefaultEnrollmentConfig() EnrollmentConfig {
	return EnrollmentConfig{
		WelcomeGold: 5,
	}
}

// NewEnrollmentSaga creates a new enrollment saga with all dependencies.
func NewEnrollmentSaga(
	playerRepo player.Repository,
	registrar PlayerRegistrar,
	awards AwardApplier,
	eventBus shared.EventPublisher,
	config EnrollmentConfig,
) *EnrollmentSaga {
	return &EnrollmentSaga{
		playerRepo:  playerRepo,
		registrar:   registrar,
		awards:      awards,
		eventBus:    eventBus,
		welcomeGold: config.WelcomeGold,
	}
}

// Execute runs the complete enrollment process.
// It returns the result on success or an error with context about the failure.
func (s *EnrollmentSaga) Execute(ctx context.Context, input EnrollmentInput) (*EnrollmentResult, error) {
	state := &EnrollmentState{
		CurrentStep: StepValidateInput,
		Input:       input,
		StartedAt:   time.Now().UTC(),
	}

	// Step 1: Validate input
	if err := s.stepValidateInput(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 2: Check if the player already exists
	state.CurrentStep = StepCheckExistence
	if err := s.stepCheckExistence(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 3: Register the player
	state.CurrentStep = StepRegisterPlayer
	if err := s.stepRegisterPlayer(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 4: Grant welcome gold
	state.CurrentStep = StepGrantWelcome
	welcomeAwardID, err := s.stepGrantWelcome(ctx, state)
	if err != nil {
		// Non-critical - the grant is idempotent and can be reissued
		// manually by the instructor.
		welcomeAwardID = ""
	}

	// Step 5: Publish domain event
	state.CurrentStep = StepPublishEvent
	if err := s.stepPublishEvent(ctx, state); err != nil {
		// Non-critical - subscribers rebuild from storage anyway
	}

	// Complete
	state.CurrentStep = StepComplete
	now := time.Now().UTC()
	state.CompletedAt = &now

	welcomeGold := 0
	if welcomeAwardID != "" {
		welcomeGold = s.welcomeGold
	}

	return &EnrollmentResult{
		State:          state.Player,
		WelcomeAwardID: welcomeAwardID,
		WelcomeGold:    welcomeGold,
		EnrolledAt:     now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA STEPS
// ══════════════════════════════════════════════════════════════════════════════

// stepValidateInput validates all input parameters.
func (s *EnrollmentSaga) stepValidateInput(ctx context.Context, state *EnrollmentState) error {
	if err := state.Input.Validate(); err != nil {
		state.FailedStep = StepValidateInput
		state.Error = err
		return err
	}
	return nil
}

// stepCheckExistence verifies the player doesn't already exist.
// Skipped when the ID is left for the registrar to generate.
func (s *EnrollmentSaga) stepCheckExistence(ctx context.Context, state *EnrollmentState) error {
	if state.Input.PlayerID == "" {
		return nil
	}

	exists, err := s.playerRepo.Exists(ctx, state.Input.PlayerID)
	if err != nil {
		state.FailedStep = StepCheckExistence
		state.Error = fmt.Errorf("failed to check player existence: %w", err)
		return state.Error
	}
	if exists {
		state.FailedStep = StepCheckExistence
		state.Error = ErrPlayerAlreadyEnrolled
		return state.Error
	}

	return nil
}

// stepRegisterPlayer creates the player record through the registration command.
func (s *EnrollmentSaga) stepRegisterPlayer(ctx context.Context, state *EnrollmentState) error {
	result, err := s.registrar.Handle(ctx, command.RegisterPlayerCommand{
		PlayerID: state.Input.PlayerID,
		Quests:   state.Input.Quests,
	})
	if err != nil {
		state.FailedStep = StepRegisterPlayer
		if errors.Is(err, shared.ErrAlreadyExists) {
			state.Error = ErrPlayerAlreadyEnrolled
		} else {
			state.Error = fmt.Errorf("failed to register player: %w", err)
		}
		return state.Error
	}

	state.Player = result.State
	return nil
}

// stepGrantWelcome grants the welcome gold to the new player.
func (s *EnrollmentSaga) stepGrantWelcome(ctx context.Context, state *EnrollmentState) (string, error) {
	if s.welcomeGold <= 0 || s.awards == nil {
		return "", nil
	}

	awardID := WelcomeAwardID(state.Player.ID)
	_, err := s.awards.Handle(ctx, command.ApplyAwardCommand{
		AwardID:     awardID,
		Kind:        award.KindGold,
		PlayerID:    state.Player.ID,
		Amount:      s.welcomeGold,
		Description: "welcome bonus",
		IssuedBy:    state.Input.EnrolledBy,
	})
	if err != nil {
		return "", fmt.Errorf("failed to grant welcome gold: %w", err)
	}

	return awardID, nil
}

// stepPublishEvent publishes the PlayerEnrolled domain event.
func (s *EnrollmentSaga) stepPublishEvent(ctx context.Context, state *EnrollmentState) error {
	event := shared.NewPlayerEnrolledEvent(
		state.Player.ID,
		state.Input.EnrolledBy,
		s.welcomeGold,
	)

	if err := s.eventBus.Publish(event); err != nil {
		return fmt.Errorf("failed to publish player enrolled event: %w", err)
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

// WelcomeAwardID derives the idempotency key for a player's welcome grant.
// Deterministic so repeated enrollment attempts collapse to one grant.
func WelcomeAwardID(playerID string) string {
	return "welcome:" + playerID
}

// wrapError wraps an error with saga context.
func (s *EnrollmentSaga) wrapError(state *EnrollmentState, err error) error {
	return &EnrollmentError{
		Step:    state.FailedStep,
		Input:   state.Input,
		Cause:   err,
		Message: fmt.Sprintf("enrollment failed at step '%s': %v", state.FailedStep, err),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentError represents an error during the enrollment process.
type EnrollmentError struct {
	Step    EnrollmentStep
	Input   EnrollmentInput
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *EnrollmentError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *EnrollmentError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if the error can be retried.
func (e *EnrollmentError) IsRetryable() bool {
	// Validation and existence errors are not retryable
	if e.Step == StepValidateInput || e.Step == StepCheckExistence {
		return false
	}
	if errors.Is(e.Cause, ErrPlayerAlreadyEnrolled) {
		return false
	}
	return true
}

// Saga-specific errors.
var (
	// ErrPlayerAlreadyEnrolled - the player is already on the roster.
	ErrPlayerAlreadyEnrolled = errors.New("enrollment: player already enrolled")
)
