package gamificationdb

import (
	"context"
	"sort"
	"sync"

	gamificationtypes "github.com/angelgru/gamification/app/modules/gamification/domain/types"
	"github.com/uptrace/bun"
)

// MemoryLedger is a process-local Repository. It enforces the same uniqueness
// rules as the SQL ledger and ignores the db argument of every method.
type MemoryLedger struct {
	mu       sync.RWMutex
	seq      int64
	scores   []memoryEntry[ScoreEvent]
	grants   []memoryEntry[BadgeGrant]
	attempts map[gamificationtypes.AttemptID]struct{}
	held     map[gamificationtypes.UserID]map[gamificationtypes.BadgeKind]struct{}
}

// memoryEntry keeps the insertion sequence so equal timestamps still order deterministically.
type memoryEntry[T any] struct {
	seq  int64
	item T
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		attempts: make(map[gamificationtypes.AttemptID]struct{}),
		held:     make(map[gamificationtypes.UserID]map[gamificationtypes.BadgeKind]struct{}),
	}
}

var _ Repository = (*MemoryLedger)(nil)

func (m *MemoryLedger) AppendScoreEvent(_ context.Context, _ bun.IDB, event *ScoreEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.attempts[event.AttemptID]; exists {
		return ErrDuplicate
	}
	event.prepare()
	m.seq++
	m.attempts[event.AttemptID] = struct{}{}
	m.scores = append(m.scores, memoryEntry[ScoreEvent]{seq: m.seq, item: *event})
	return nil
}

func (m *MemoryLedger) GetTotalScore(_ context.Context, _ bun.IDB, userID gamificationtypes.UserID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := 0
	for _, e := range m.scores {
		if e.item.UserID == userID {
			total += e.item.Score
		}
	}
	return total, nil
}

func (m *MemoryLedger) GetScoreEvents(_ context.Context, _ bun.IDB, userID gamificationtypes.UserID) ([]ScoreEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []memoryEntry[ScoreEvent]
	for _, e := range m.scores {
		if e.item.UserID == userID {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.item.ScoredAt.Equal(b.item.ScoredAt) {
			return a.item.ScoredAt.After(b.item.ScoredAt)
		}
		return a.seq > b.seq
	})

	out := make([]ScoreEvent, 0, len(matched))
	for _, e := range matched {
		out = append(out, e.item)
	}
	return out, nil
}

func (m *MemoryLedger) GetTopScores(_ context.Context, _ bun.IDB, limit int) ([]gamificationtypes.LeaderboardRow, error) {
	m.mu.RLock()
	totals := make(map[gamificationtypes.UserID]int)
	for _, e := range m.scores {
		totals[e.item.UserID] += e.item.Score
	}
	m.mu.RUnlock()

	rows := make([]gamificationtypes.LeaderboardRow, 0, len(totals))
	for userID, total := range totals {
		rows = append(rows, gamificationtypes.LeaderboardRow{UserID: userID, TotalScore: total})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalScore != rows[j].TotalScore {
			return rows[i].TotalScore > rows[j].TotalScore
		}
		return rows[i].UserID < rows[j].UserID
	})
	if limit >= 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *MemoryLedger) AppendBadgeGrant(_ context.Context, _ bun.IDB, grant *BadgeGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kinds, ok := m.held[grant.UserID]
	if !ok {
		kinds = make(map[gamificationtypes.BadgeKind]struct{})
		m.held[grant.UserID] = kinds
	}
	if _, exists := kinds[grant.BadgeKind]; exists {
		return ErrDuplicate
	}
	grant.prepare()
	m.seq++
	kinds[grant.BadgeKind] = struct{}{}
	m.grants = append(m.grants, memoryEntry[BadgeGrant]{seq: m.seq, item: *grant})
	return nil
}

func (m *MemoryLedger) GetBadgeGrants(_ context.Context, _ bun.IDB, userID gamificationtypes.UserID) ([]BadgeGrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []memoryEntry[BadgeGrant]
	for _, e := range m.grants {
		if e.item.UserID == userID {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.item.GrantedAt.Equal(b.item.GrantedAt) {
			return a.item.GrantedAt.After(b.item.GrantedAt)
		}
		return a.seq > b.seq
	})

	out := make([]BadgeGrant, 0, len(matched))
	for _, e := range matched {
		out = append(out, e.item)
	}
	return out, nil
}
