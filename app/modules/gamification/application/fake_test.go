package gamificationservice

import (
	"context"
	"sync"

	gamificationtypes "github.com/angelgru/gamification/app/modules/gamification/domain/types"
	gamificationdb "github.com/angelgru/gamification/app/modules/gamification/infrastructure/repositories"
	gamificationmetrics "github.com/angelgru/gamification/app/observability/metrics/gamification"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Gamification Repo
// ------------------------

type FakeGamificationRepo struct {
	trace []string

	AppendScoreEventFunc func(ctx context.Context, db bun.IDB, event *gamificationdb.ScoreEvent) error
	GetTotalScoreFunc    func(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) (int, error)
	GetScoreEventsFunc   func(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) ([]gamificationdb.ScoreEvent, error)
	GetTopScoresFunc     func(ctx context.Context, db bun.IDB, limit int) ([]gamificationtypes.LeaderboardRow, error)
	AppendBadgeGrantFunc func(ctx context.Context, db bun.IDB, grant *gamificationdb.BadgeGrant) error
	GetBadgeGrantsFunc   func(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) ([]gamificationdb.BadgeGrant, error)
}

func NewFakeGamificationRepo() *FakeGamificationRepo {
	return &FakeGamificationRepo{
		trace: []string{},
	}
}

func (f *FakeGamificationRepo) record(step string) {
	f.trace = append(f.trace, step)
}

// --- Repository Interface Implementation ---

func (f *FakeGamificationRepo) AppendScoreEvent(ctx context.Context, db bun.IDB, event *gamificationdb.ScoreEvent) error {
	f.record("AppendScoreEvent")
	if f.AppendScoreEventFunc != nil {
		return f.AppendScoreEventFunc(ctx, db, event)
	}
	return nil
}

func (f *FakeGamificationRepo) GetTotalScore(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) (int, error) {
	f.record("GetTotalScore")
	if f.GetTotalScoreFunc != nil {
		return f.GetTotalScoreFunc(ctx, db, userID)
	}
	return 0, nil
}

func (f *FakeGamificationRepo) GetScoreEvents(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) ([]gamificationdb.ScoreEvent, error) {
	f.record("GetScoreEvents")
	if f.GetScoreEventsFunc != nil {
		return f.GetScoreEventsFunc(ctx, db, userID)
	}
	return nil, nil
}

func (f *FakeGamificationRepo) GetTopScores(ctx context.Context, db bun.IDB, limit int) ([]gamificationtypes.LeaderboardRow, error) {
	f.record("GetTopScores")
	if f.GetTopScoresFunc != nil {
		return f.GetTopScoresFunc(ctx, db, limit)
	}
	return nil, nil
}

func (f *FakeGamificationRepo) AppendBadgeGrant(ctx context.Context, db bun.IDB, grant *gamificationdb.BadgeGrant) error {
	f.record("AppendBadgeGrant")
	if f.AppendBadgeGrantFunc != nil {
		return f.AppendBadgeGrantFunc(ctx, db, grant)
	}
	return nil
}

func (f *FakeGamificationRepo) GetBadgeGrants(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) ([]gamificationdb.BadgeGrant, error) {
	f.record("GetBadgeGrants")
	if f.GetBadgeGrantsFunc != nil {
		return f.GetBadgeGrantsFunc(ctx, db, userID)
	}
	return nil, nil
}

// --- Accessors for assertions ---

func (f *FakeGamificationRepo) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

var _ gamificationdb.Repository = (*FakeGamificationRepo)(nil)

// ------------------------
// Fake Attempt Lookup
// ------------------------

type FakeAttemptLookup struct {
	calls []gamificationtypes.AttemptID

	LookupAttemptFunc func(ctx context.Context, attemptID gamificationtypes.AttemptID) (gamificationtypes.AttemptOperands, error)
}

func (f *FakeAttemptLookup) LookupAttempt(ctx context.Context, attemptID gamificationtypes.AttemptID) (gamificationtypes.AttemptOperands, error) {
	f.calls = append(f.calls, attemptID)
	if f.LookupAttemptFunc != nil {
		return f.LookupAttemptFunc(ctx, attemptID)
	}
	return gamificationtypes.AttemptOperands{AttemptID: attemptID, OperandA: 3, OperandB: 7}, nil
}

func (f *FakeAttemptLookup) Calls() int {
	return len(f.calls)
}

// operandsLookup returns a lookup that always answers with a and b.
func operandsLookup(a, b int) *FakeAttemptLookup {
	return &FakeAttemptLookup{
		LookupAttemptFunc: func(ctx context.Context, attemptID gamificationtypes.AttemptID) (gamificationtypes.AttemptOperands, error) {
			return gamificationtypes.AttemptOperands{AttemptID: attemptID, OperandA: a, OperandB: b}, nil
		},
	}
}

var _ AttemptLookup = (*FakeAttemptLookup)(nil)

// ------------------------
// Fake Metrics
// ------------------------

// FakeMetrics counts operation outcomes per operation name.
type FakeMetrics struct {
	gamificationmetrics.GamificationMetrics

	mu       sync.Mutex
	success  map[string]int
	failures map[string]int
}

func NewFakeMetrics() *FakeMetrics {
	return &FakeMetrics{
		GamificationMetrics: gamificationmetrics.NewNoop(),
		success:             map[string]int{},
		failures:            map[string]int{},
	}
}

func (f *FakeMetrics) RecordOperationSuccess(ctx context.Context, operation, service string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.success[operation]++
}

func (f *FakeMetrics) RecordOperationFailure(ctx context.Context, operation, service string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[operation]++
}

func (f *FakeMetrics) Counts(operation string) (success, failures int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.success[operation], f.failures[operation]
}
