package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER PLAYER COMMAND
// Creates a player with the classroom's three quest slots and the default
// starting resources.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterPlayerCommand contains the data to register a new player.
type RegisterPlayerCommand struct {
	// PlayerID is the desired ID. Empty means a generated UUID.
	PlayerID string

	// Quests are the player's quest slots. Empty means the handler's
	// configured classroom quests.
	Quests []player.QuestID
}

// RegisterPlayerResult contains the created player state.
type RegisterPlayerResult struct {
	State *player.State
}

// RegisterPlayerHandler handles the RegisterPlayerCommand.
type RegisterPlayerHandler struct {
	playerRepo player.Repository

	// defaultQuests is the classroom-wide quest set.
	defaultQuests []player.QuestID
}

// NewRegisterPlayerHandler creates a new RegisterPlayerHandler.
func NewRegisterPlayerHandler(playerRepo player.Repository, defaultQuests []player.QuestID) *RegisterPlayerHandler {
	return &RegisterPlayerHandler{
		playerRepo:    playerRepo,
		defaultQuests: defaultQuests,
	}
}

// Handle executes the register player command.
func (h *RegisterPlayerHandler) Handle(ctx context.Context, cmd RegisterPlayerCommand) (*RegisterPlayerResult, error) {
	playerID := cmd.PlayerID
	if playerID == "" {
		playerID = uuid.NewString()
	}

	quests := cmd.Quests
	if len(quests) == 0 {
		quests = h.defaultQuests
	}
	if len(quests) != player.QuestCount {
		return nil, errors.New("register_player: exactly three quests are required")
	}

	state, err := player.NewState(player.NewStateParams{
		ID:     playerID,
		Quests: quests,
	})
	if err != nil {
		return nil, fmt.Errorf("register_player: %w", err)
	}

	if err := h.playerRepo.Create(ctx, state); err != nil {
		return nil, fmt.Errorf("register_player: failed to create player: %w", err)
	}

	return &RegisterPlayerResult{State: state}, nil
}
