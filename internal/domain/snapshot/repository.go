package snapshot

import (
	"context"
)

// Repository определяет контракт хранилища снапшотов.
// Хранилище ведёт скользящий журнал: Save с retention > 0 вытесняет
// старейшие снапшоты сверх лимита. Снапшоты никогда не обновляются.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Запись
	// ─────────────────────────────────────────────────────────────────────────

	// Save сохраняет снапшот и вытесняет старейшие сверх retention.
	// retention <= 0 означает "хранить всё".
	// Возвращает ID вытесненных снапшотов (может быть пустым).
	Save(ctx context.Context, snap *Snapshot, retention int) (evicted []string, err error)

	// ─────────────────────────────────────────────────────────────────────────
	// Чтение
	// ─────────────────────────────────────────────────────────────────────────

	// GetByID возвращает полный снапшот с записями игроков.
	// Возвращает shared.ErrSnapshotNotFound, если снапшот не существует.
	GetByID(ctx context.Context, id string) (*Snapshot, error)

	// GetLatest возвращает самый свежий снапшот.
	// Возвращает shared.ErrSnapshotNotFound, если снапшотов ещё нет.
	GetLatest(ctx context.Context) (*Snapshot, error)

	// List возвращает метаданные снапшотов, новейшие первыми.
	List(ctx context.Context, limit, offset int) ([]Meta, error)

	// Count возвращает количество хранимых снапшотов.
	Count(ctx context.Context) (int, error)
}
