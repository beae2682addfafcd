package repository

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/payday/internal/domain/model"
)

// MemoryStore is an in-process Store. Ledger transactions are serialized by
// mu and work on a copy of the payout table that replaces the committed one
// only when the transaction function succeeds. Scoring data has its own lock
// so rankings can be computed while a transaction is open.
type MemoryStore struct {
	mu      sync.Mutex
	leagues map[string]model.League
	payouts map[string]model.Payout

	dataMu       sync.RWMutex
	gameweeks    map[int]model.Gameweek
	performances map[perfKey]model.Performance
	matches      map[string]model.Match

	newID func() string
}

type perfKey struct {
	participant string
	gameweek    int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		newID:        uuid.NewString,
		leagues:      make(map[string]model.League),
		payouts:      make(map[string]model.Payout),
		gameweeks:    make(map[int]model.Gameweek),
		performances: make(map[perfKey]model.Performance),
		matches:      make(map[string]model.Match),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close implements Store.
func (s *MemoryStore) Close() {}

// League implements Ledger.
func (s *MemoryStore) League(_ context.Context, id string) (model.League, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leagues[id]
	if !ok {
		return model.League{}, fmt.Errorf("league %s: %w", id, ErrNotFound)
	}
	return cloneLeague(l), nil
}

// Leagues implements Ledger.
func (s *MemoryStore) Leagues(_ context.Context) ([]model.League, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.League, 0, len(s.leagues))
	for _, id := range slices.Sorted(maps.Keys(s.leagues)) {
		out = append(out, cloneLeague(s.leagues[id]))
	}
	return out, nil
}

// MarkRefreshed implements Ledger.
func (s *MemoryStore) MarkRefreshed(_ context.Context, leagueID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leagues[leagueID]
	if !ok {
		return fmt.Errorf("league %s: %w", leagueID, ErrNotFound)
	}
	at = at.UTC()
	l.LastRefreshed = &at
	s.leagues[leagueID] = l
	return nil
}

// UnfinalizedPayouts implements Ledger.
func (s *MemoryStore) UnfinalizedPayouts(_ context.Context, leagueID string, cutoff time.Time) ([]model.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return selectPayouts(s.payouts, func(p model.Payout) bool {
		return p.LeagueID == leagueID && !p.Finalized() && !p.EndDate.After(cutoff)
	}, model.ByPeriod), nil
}

// Payouts implements Ledger.
func (s *MemoryStore) Payouts(_ context.Context, leagueID string) ([]model.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return selectPayouts(s.payouts, func(p model.Payout) bool {
		return p.LeagueID == leagueID
	}, model.ByPeriod), nil
}

// InTx implements Ledger. The store's ledger methods must not be called from
// fn; use tx instead. Scoring data reads are allowed.
func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, payouts: maps.Clone(s.payouts)}
	defer func() { tx.done = true }()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.payouts = tx.payouts
	return nil
}

// UpsertLeague implements Writer.
func (s *MemoryStore) UpsertLeague(_ context.Context, l model.League) error {
	if l.ID == "" {
		return fmt.Errorf("league without id: %w", ErrInvalidRecord)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.leagues[l.ID]; ok && l.LastRefreshed == nil {
		l.LastRefreshed = prev.LastRefreshed
	}
	s.leagues[l.ID] = cloneLeague(l)
	return nil
}

// UpsertGameweek implements Writer.
func (s *MemoryStore) UpsertGameweek(_ context.Context, gw model.Gameweek) error {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	s.gameweeks[gw.Number] = gw
	return nil
}

// UpsertPerformance implements Writer.
func (s *MemoryStore) UpsertPerformance(_ context.Context, p model.Performance) error {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	s.performances[perfKey{participant: p.ParticipantID, gameweek: p.Gameweek}] = p
	return nil
}

// UpsertMatch implements Writer.
func (s *MemoryStore) UpsertMatch(_ context.Context, m model.Match) error {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	if m.ID == "" {
		m.ID = s.newID()
	}
	s.matches[m.ID] = m
	return nil
}

// UpsertPayout implements Writer.
func (s *MemoryStore) UpsertPayout(_ context.Context, p model.Payout) (model.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leagues[p.LeagueID]; !ok {
		return model.Payout{}, fmt.Errorf("league %s: %w", p.LeagueID, ErrNotFound)
	}
	if p.ID == "" {
		p.ID = s.newID()
	}
	if err := putPayout(s.payouts, p); err != nil {
		return model.Payout{}, err
	}
	return p.Clone(), nil
}

// Gameweeks implements ranking.PerformanceReader.
func (s *MemoryStore) Gameweeks(_ context.Context) ([]model.Gameweek, error) {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()

	out := slices.Collect(maps.Values(s.gameweeks))
	slices.SortFunc(out, func(a, b model.Gameweek) int { return cmp.Compare(a.Number, b.Number) })
	return out, nil
}

// Performances implements ranking.PerformanceReader.
func (s *MemoryStore) Performances(_ context.Context, participantIDs []string, gameweeks []int) ([]model.Performance, error) {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()

	var out []model.Performance
	for _, id := range participantIDs {
		for _, gw := range gameweeks {
			if p, ok := s.performances[perfKey{participant: id, gameweek: gw}]; ok {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// Matches implements ranking.PerformanceReader.
func (s *MemoryStore) Matches(_ context.Context, leagueID string, gameweeks []int) ([]model.Match, error) {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()

	var out []model.Match
	for _, m := range s.matches {
		if m.LeagueID == leagueID && slices.Contains(gameweeks, m.Gameweek) {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b model.Match) int {
		if c := cmp.Compare(a.Gameweek, b.Gameweek); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// memTx is a transaction over a private copy of the payout table. The store
// mutex is held for its whole lifetime.
type memTx struct {
	store   *MemoryStore
	payouts map[string]model.Payout
	done    bool
}

func (tx *memTx) Payout(_ context.Context, id string) (model.Payout, error) {
	if tx.done {
		return model.Payout{}, ErrTxDone
	}
	p, ok := tx.payouts[id]
	if !ok {
		return model.Payout{}, fmt.Errorf("payout %s: %w", id, ErrNotFound)
	}
	return p.Clone(), nil
}

func (tx *memTx) RelatedPayouts(_ context.Context, p model.Payout) ([]model.Payout, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	return selectPayouts(tx.payouts, func(o model.Payout) bool {
		return o.LeagueID == p.LeagueID && o.ID != p.ID && o.Position != p.Position &&
			o.StartDate.Equal(p.StartDate) && o.EndDate.Equal(p.EndDate)
	}, func(a, b model.Payout) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	}), nil
}

func (tx *memTx) FuturePayouts(_ context.Context, p model.Payout) ([]model.Payout, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	return selectPayouts(tx.payouts, func(o model.Payout) bool {
		return o.LeagueID == p.LeagueID && o.Position == p.Position && o.StartDate.After(p.EndDate) &&
			!o.Finalized()
	}, model.ByPeriod), nil
}

func (tx *memTx) SavePayout(_ context.Context, p model.Payout) error {
	if tx.done {
		return ErrTxDone
	}
	if _, ok := tx.payouts[p.ID]; !ok {
		return fmt.Errorf("payout %s: %w", p.ID, ErrNotFound)
	}
	return putPayout(tx.payouts, p)
}

func (tx *memTx) InsertPayout(_ context.Context, p model.Payout) (model.Payout, error) {
	if tx.done {
		return model.Payout{}, ErrTxDone
	}
	p.ID = tx.store.newID()
	if err := putPayout(tx.payouts, p); err != nil {
		return model.Payout{}, err
	}
	return p.Clone(), nil
}

func (tx *memTx) DeletePayout(_ context.Context, id string) error {
	if tx.done {
		return ErrTxDone
	}
	if _, ok := tx.payouts[id]; !ok {
		return fmt.Errorf("payout %s: %w", id, ErrNotFound)
	}
	delete(tx.payouts, id)
	return nil
}

// putPayout stores p after checking that no other resolved payout of the same
// league, position and period has the same winner.
func putPayout(table map[string]model.Payout, p model.Payout) error {
	if p.Position < 1 || p.EndDate.Before(p.StartDate) {
		return fmt.Errorf("payout %s: %w", p.ID, ErrInvalidRecord)
	}
	if p.Winner != nil {
		for id, o := range table {
			if id == p.ID || o.Winner == nil {
				continue
			}
			if o.LeagueID == p.LeagueID && o.Position == p.Position &&
				o.StartDate.Equal(p.StartDate) && o.EndDate.Equal(p.EndDate) &&
				*o.Winner == *p.Winner {
				return fmt.Errorf("payout %s winner %s: %w", p.ID, *p.Winner, ErrDuplicatePayout)
			}
		}
	}
	table[p.ID] = p.Clone()
	return nil
}

func selectPayouts(table map[string]model.Payout, keep func(model.Payout) bool, order func(a, b model.Payout) int) []model.Payout {
	var out []model.Payout
	for _, p := range table {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	slices.SortFunc(out, order)
	return out
}

func cloneLeague(l model.League) model.League {
	c := l
	c.Entrants = slices.Clone(l.Entrants)
	if l.LastRefreshed != nil {
		t := *l.LastRefreshed
		c.LastRefreshed = &t
	}
	return c
}
