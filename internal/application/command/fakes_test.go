package command

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/olympus-hub/classroom-olympics/internal/domain/award"
	"github.com/olympus-hub/classroom-olympics/internal/domain/gameboard"
	"github.com/olympus-hub/classroom-olympics/internal/domain/player"
	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// In-memory fakes shared by the command handler tests.
// ─────────────────────────────────────────────────────────────────────────────

type fakePlayerRepo struct {
	mu      sync.Mutex
	players map[string]*player.State

	// failSavesLeft makes the next N saves fail with a stale-version error.
	failSavesLeft int

	// getDelay stalls GetByID until the context expires or the delay
	// passes, for exercising per-player timeouts.
	getDelay time.Duration
}

func newFakePlayerRepo() *fakePlayerRepo {
	return &fakePlayerRepo{players: make(map[string]*player.State)}
}

func (r *fakePlayerRepo) Create(ctx context.Context, state *player.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[state.ID]; ok {
		return shared.ErrPlayerAlreadyExists
	}
	r.players[state.ID] = state.Clone()
	return nil
}

func (r *fakePlayerRepo) GetByID(ctx context.Context, id string) (*player.State, error) {
	if r.getDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.getDelay):
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.players[id]
	if !ok {
		return nil, shared.ErrPlayerNotFound
	}
	return s.Clone(), nil
}

func (r *fakePlayerRepo) Save(ctx context.Context, state *player.State, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSavesLeft > 0 {
		r.failSavesLeft--
		return shared.ErrPlayerStaleVersion
	}
	stored, ok := r.players[state.ID]
	if !ok {
		return shared.ErrPlayerNotFound
	}
	if stored.Version != expectedVersion {
		return shared.ErrPlayerStaleVersion
	}
	r.players[state.ID] = state.Clone()
	return nil
}

func (r *fakePlayerRepo) GetAll(ctx context.Context, opts player.ListOptions) ([]*player.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*player.State, 0, len(r.players))
	for _, s := range r.players {
		out = append(out, s.Clone())
	}
	return out, nil
}

func (r *fakePlayerRepo) GetByIDs(ctx context.Context, ids []string) ([]*player.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*player.State, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.players[id]; ok {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (r *fakePlayerRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players), nil
}

func (r *fakePlayerRepo) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.players[id]
	return ok, nil
}

type fakeActivityLog struct {
	mu      sync.Mutex
	entries []*award.LogEntry
}

func newFakeActivityLog() *fakeActivityLog {
	return &fakeActivityLog{}
}

func (l *fakeActivityLog) Append(ctx context.Context, entry *award.LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

func (l *fakeActivityLog) FindByAwardID(ctx context.Context, playerID, awardID string) (*award.LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.PlayerID == playerID && e.AwardID == awardID {
			return e, nil
		}
	}
	return nil, shared.ErrAwardNotFound
}

func (l *fakeActivityLog) HasAward(ctx context.Context, playerID, awardID string) (bool, error) {
	_, err := l.FindByAwardID(ctx, playerID, awardID)
	if err != nil {
		if shared.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (l *fakeActivityLog) ListByPlayer(ctx context.Context, playerID string, limit int) ([]*award.LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*award.LogEntry, 0)
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if l.entries[i].PlayerID == playerID {
			out = append(out, l.entries[i])
		}
	}
	return out, nil
}

func (l *fakeActivityLog) ListByIssuer(ctx context.Context, issuedBy string, limit int) ([]*award.LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*award.LogEntry, 0)
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if l.entries[i].IssuedBy == issuedBy {
			out = append(out, l.entries[i])
		}
	}
	return out, nil
}

func (l *fakeActivityLog) ListSince(ctx context.Context, since time.Time, limit int) ([]*award.LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*award.LogEntry, 0)
	for _, e := range l.entries {
		if !e.AppliedAt.Before(since) && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *fakeActivityLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

type fakeStationRepo struct {
	stations map[int]*gameboard.Station
}

func newFakeStationRepo(stations ...*gameboard.Station) *fakeStationRepo {
	m := make(map[int]*gameboard.Station, len(stations))
	for _, s := range stations {
		m[s.ID] = s
	}
	return &fakeStationRepo{stations: m}
}

func (r *fakeStationRepo) GetByID(ctx context.Context, id int) (*gameboard.Station, error) {
	s, ok := r.stations[id]
	if !ok {
		return nil, shared.ErrStationNotFound
	}
	return s, nil
}

func (r *fakeStationRepo) ListAll(ctx context.Context) ([]*gameboard.Station, error) {
	out := make([]*gameboard.Station, 0, len(r.stations))
	for _, s := range r.stations {
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeStationRepo) Count(ctx context.Context) (int, error) {
	return len(r.stations), nil
}

type fakeRollHistory struct {
	mu       sync.Mutex
	outcomes []*gameboard.RollOutcome
}

func newFakeRollHistory() *fakeRollHistory {
	return &fakeRollHistory{}
}

func (h *fakeRollHistory) Append(ctx context.Context, outcome *gameboard.RollOutcome) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outcomes = append(h.outcomes, outcome)
	return nil
}

func (h *fakeRollHistory) ListByPlayer(ctx context.Context, playerID string, limit int) ([]*gameboard.RollOutcome, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*gameboard.RollOutcome, 0)
	for i := len(h.outcomes) - 1; i >= 0 && len(out) < limit; i-- {
		if h.outcomes[i].PlayerID == playerID {
			out = append(out, h.outcomes[i])
		}
	}
	return out, nil
}

// fakeProgressStore commits against the in-memory fakes with the same
// all-or-nothing contract as the real transactional store: an injected
// failure happens before any write lands, like a rolled-back transaction.
type fakeProgressStore struct {
	mu      sync.Mutex
	players *fakePlayerRepo
	log     *fakeActivityLog
	rolls   *fakeRollHistory

	// failCommitsLeft makes the next N commits fail without writing.
	failCommitsLeft int
}

func newFakeProgressStore(players *fakePlayerRepo, log *fakeActivityLog, rolls *fakeRollHistory) *fakeProgressStore {
	return &fakeProgressStore{players: players, log: log, rolls: rolls}
}

func (s *fakeProgressStore) CommitAward(ctx context.Context, state *player.State, expectedVersion int64, entries []*award.LogEntry) error {
	return s.commit(ctx, state, expectedVersion, nil, entries)
}

func (s *fakeProgressStore) CommitMove(ctx context.Context, state *player.State, expectedVersion int64, outcome *gameboard.RollOutcome, entries []*award.LogEntry) error {
	return s.commit(ctx, state, expectedVersion, outcome, entries)
}

func (s *fakeProgressStore) commit(
	ctx context.Context,
	state *player.State,
	expectedVersion int64,
	outcome *gameboard.RollOutcome,
	entries []*award.LogEntry,
) error {
	s.mu.Lock()
	if s.failCommitsLeft > 0 {
		s.failCommitsLeft--
		s.mu.Unlock()
		return errors.New("commit rolled back")
	}
	s.mu.Unlock()

	if err := s.players.Save(ctx, state, expectedVersion); err != nil {
		return err
	}
	if outcome != nil {
		if err := s.rolls.Append(ctx, outcome); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := s.log.Append(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{}
}

func (p *fakePublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) eventTypes() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.EventType())
	}
	return types
}

// seedPlayer creates and stores a player with the standard test quests.
func seedPlayer(repo *fakePlayerRepo, id string) *player.State {
	state, err := player.NewState(player.NewStateParams{
		ID:     id,
		Quests: []player.QuestID{"sprint", "marathon", "relay"},
	})
	if err != nil {
		panic(err)
	}
	if err := repo.Create(context.Background(), state); err != nil {
		panic(err)
	}
	return state
}
