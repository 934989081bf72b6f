package eventhandler

import (
	"context"
	"log/slog"

	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON LEVEL UP HANDLER
// Фиксирует повышения уровня в журнале для классной доски объявлений.
// ═══════════════════════════════════════════════════════════════════════════

// OnLevelUpHandler логирует повышения уровня игроков.
type OnLevelUpHandler struct {
	logger *slog.Logger
}

// NewOnLevelUpHandler создаёт новый обработчик события повышения уровня.
func NewOnLevelUpHandler(logger *slog.Logger) *OnLevelUpHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnLevelUpHandler{
		logger: logger.With("handler", "on_level_up"),
	}
}

// Name реализует интерфейс shared.EventHandler.
func (h *OnLevelUpHandler) Name() string {
	return "on_level_up"
}

// Handle обрабатывает событие повышения уровня.
func (h *OnLevelUpHandler) Handle(_ context.Context, event shared.Event) error {
	levelEvent, ok := event.(shared.LevelUpEvent)
	if !ok {
		h.logger.Warn("received non-LevelUpEvent", "event_type", event.EventType())
		return nil
	}

	h.logger.Info("player levelled up",
		"player_id", levelEvent.PlayerID,
		"old_level", levelEvent.OldLevel,
		"new_level", levelEvent.NewLevel,
		"total_xp", levelEvent.TotalXP,
	)
	return nil
}
