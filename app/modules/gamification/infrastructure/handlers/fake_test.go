package gamificationhandlers

import (
	"context"

	gamificationservice "github.com/angelgru/gamification/app/modules/gamification/application"
	gamificationtypes "github.com/angelgru/gamification/app/modules/gamification/domain/types"
)

// ------------------------
// Fake Gamification Service
// ------------------------

type FakeService struct {
	trace []string

	RecordOutcomeFunc      func(ctx context.Context, userID gamificationtypes.UserID, attemptID gamificationtypes.AttemptID, correct bool) (gamificationtypes.OutcomeResult, error)
	StatsForUserFunc       func(ctx context.Context, userID gamificationtypes.UserID) (gamificationtypes.UserGameStats, error)
	CurrentLeaderboardFunc func(ctx context.Context) ([]gamificationtypes.LeaderboardRow, error)
}

func NewFakeService() *FakeService {
	return &FakeService{trace: []string{}}
}

func (f *FakeService) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeService) RecordOutcome(ctx context.Context, userID gamificationtypes.UserID, attemptID gamificationtypes.AttemptID, correct bool) (gamificationtypes.OutcomeResult, error) {
	f.record("RecordOutcome")
	if f.RecordOutcomeFunc != nil {
		return f.RecordOutcomeFunc(ctx, userID, attemptID, correct)
	}
	return gamificationtypes.OutcomeResult{
		Stats:         gamificationtypes.EmptyStats(userID),
		NewBadges:     []gamificationtypes.BadgeKind{},
		AwardedBadges: []gamificationtypes.BadgeKind{},
	}, nil
}

func (f *FakeService) StatsForUser(ctx context.Context, userID gamificationtypes.UserID) (gamificationtypes.UserGameStats, error) {
	f.record("StatsForUser")
	if f.StatsForUserFunc != nil {
		return f.StatsForUserFunc(ctx, userID)
	}
	return gamificationtypes.EmptyStats(userID), nil
}

func (f *FakeService) CurrentLeaderboard(ctx context.Context) ([]gamificationtypes.LeaderboardRow, error) {
	f.record("CurrentLeaderboard")
	if f.CurrentLeaderboardFunc != nil {
		return f.CurrentLeaderboardFunc(ctx)
	}
	return nil, nil
}

func (f *FakeService) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

var _ gamificationservice.Service = (*FakeService)(nil)
