package player

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции для работы с состоянием игроков.
// Запись всегда идёт через оптимистичную конкурентность: Save принимает
// ожидаемую версию и возвращает ErrPlayerStaleVersion при несовпадении.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create создаёт нового игрока.
	// Возвращает shared.ErrPlayerAlreadyExists, если игрок уже существует.
	Create(ctx context.Context, state *State) error

	// GetByID возвращает состояние игрока по ID.
	// Возвращает shared.ErrPlayerNotFound, если игрок не найден.
	GetByID(ctx context.Context, id string) (*State, error)

	// Save записывает состояние игрока, ожидая, что в хранилище лежит
	// версия expectedVersion. Версия в state уже должна быть увеличена
	// вызывающей стороной. Возвращает shared.ErrPlayerStaleVersion при гонке.
	Save(ctx context.Context, state *State, expectedVersion int64) error

	// ─────────────────────────────────────────────────────────────────────────
	// Bulk Operations
	// ─────────────────────────────────────────────────────────────────────────

	// GetAll возвращает всех игроков с пагинацией.
	GetAll(ctx context.Context, opts ListOptions) ([]*State, error)

	// GetByIDs возвращает игроков по списку ID.
	GetByIDs(ctx context.Context, ids []string) ([]*State, error)

	// Count возвращает общее количество игроков.
	Count(ctx context.Context) (int, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Existence Checks
	// ─────────────────────────────────────────────────────────────────────────

	// Exists проверяет существование игрока по ID.
	Exists(ctx context.Context, id string) (bool, error)
}

// ListOptions содержит параметры для пагинации и сортировки.
type ListOptions struct {
	// Offset - смещение (для пагинации).
	Offset int

	// Limit - максимальное количество записей.
	Limit int

	// SortBy - поле для сортировки.
	SortBy string

	// SortDesc - сортировка по убыванию.
	SortDesc bool
}

// DefaultListOptions возвращает параметры по умолчанию.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Offset:   0,
		Limit:    50,
		SortBy:   "total_xp",
		SortDesc: true,
	}
}

// WithOffset устанавливает смещение.
func (o ListOptions) WithOffset(offset int) ListOptions {
	o.Offset = offset
	return o
}

// WithLimit устанавливает лимит.
func (o ListOptions) WithLimit(limit int) ListOptions {
	o.Limit = limit
	return o
}

// WithSort устанавливает сортировку.
func (o ListOptions) WithSort(field string, desc bool) ListOptions {
	o.SortBy = field
	o.SortDesc = desc
	return o
}
