// Package eventhandler содержит обработчики доменных событий.
// Обработчики — "реактивная" часть движка: они реагируют на изменения
// и запускают побочные эффекты, такие как обновление кеша рейтинга.
package eventhandler

import (
	"context"
	"log/slog"

	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON XP GAINED HANDLER
// Держит кеш рейтинга в актуальном состоянии: каждое начисление XP
// обновляет score игрока в sorted set. Полная перестройка кеша
// выполняется фоновой задачей планировщика.
// ═══════════════════════════════════════════════════════════════════════════

// OnXPGainedHandler обновляет кеш рейтинга при начислении XP.
type OnXPGainedHandler struct {
	rankCache player.RankCache
	logger    *slog.Logger
}

// NewOnXPGainedHandler создаёт новый обработчик события начисления XP.
func NewOnXPGainedHandler(rankCache player.RankCache, logger *slog.Logger) *OnXPGainedHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnXPGainedHandler{
		rankCache: rankCache,
		logger:    logger.With("handler", "on_xp_gained"),
	}
}

// Name реализует интерфейс shared.EventHandler.
func (h *OnXPGainedHandler) Name() string {
	return "on_xp_gained"
}

// Handle обрабатывает событие начисления XP.
// Ошибка кеша не фатальна: рейтинг восстановится при перестройке.
func (h *OnXPGainedHandler) Handle(ctx context.Context, event shared.Event) error {
	xpEvent, ok := event.(shared.XPGainedEvent)
	if !ok {
		h.logger.Warn("received non-XPGainedEvent", "event_type", event.EventType())
		return nil
	}

	if h.rankCache == nil {
		return nil
	}

	if err := h.rankCache.UpdateScore(ctx, xpEvent.PlayerID, xpEvent.NewTotal); err != nil {
		h.logger.Error("failed to update rank cache",
			"player_id", xpEvent.PlayerID,
			"new_total", xpEvent.NewTotal,
			"error", err,
		)
		return err
	}

	h.logger.Debug("rank cache updated",
		"player_id", xpEvent.PlayerID,
		"new_total", xpEvent.NewTotal,
	)
	return nil
}
