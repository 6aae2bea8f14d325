package gamificationservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	gamificationtypes "github.com/angelgru/gamification/app/modules/gamification/domain/types"
	gamificationdb "github.com/angelgru/gamification/app/modules/gamification/infrastructure/repositories"
	gamificationmetrics "github.com/angelgru/gamification/app/observability/metrics/gamification"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace/noop"
)

func newTestService(repo gamificationdb.Repository, lookup AttemptLookup) *GamificationService {
	return NewGamificationService(
		repo,
		lookup,
		DefaultRuleConfig(),
		slog.Default(),
		gamificationmetrics.NewNoop(),
		noop.NewTracerProvider().Tracer("test"),
		nil,
	)
}

func scoreEvents(n int) []gamificationdb.ScoreEvent {
	events := make([]gamificationdb.ScoreEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, gamificationdb.ScoreEvent{
			UserID:    "user-1",
			AttemptID: gamificationtypes.AttemptID(fmt.Sprintf("attempt-%d", i)),
			Score:     10,
		})
	}
	return events
}

func TestRecordOutcome(t *testing.T) {
	readsTrace := []string{"AppendScoreEvent", "GetTotalScore", "GetScoreEvents", "GetBadgeGrants"}
	withGrants := func(n int) []string {
		out := append([]string{}, readsTrace...)
		for i := 0; i < n; i++ {
			out = append(out, "AppendBadgeGrant")
		}
		return out
	}

	tests := []struct {
		name          string
		userID        gamificationtypes.UserID
		attemptID     gamificationtypes.AttemptID
		correct       bool
		setupRepo     func(*FakeGamificationRepo)
		lookup        *FakeAttemptLookup
		want          gamificationtypes.OutcomeResult
		wantErrIs     []error
		wantErrNotIs  error
		wantRetryable bool
		wantTrace     []string
		wantLookups   int
	}{
		{
			name:          "missing user id is rejected",
			userID:        "",
			attemptID:     "attempt-1",
			correct:       true,
			setupRepo:     func(f *FakeGamificationRepo) {},
			lookup:        &FakeAttemptLookup{},
			wantErrIs:     []error{ErrInvalidOutcome},
			wantRetryable: false,
			wantTrace:     []string{},
		},
		{
			name:          "missing attempt id is rejected",
			userID:        "user-1",
			attemptID:     "",
			correct:       false,
			setupRepo:     func(f *FakeGamificationRepo) {},
			lookup:        &FakeAttemptLookup{},
			wantErrIs:     []error{ErrInvalidOutcome},
			wantRetryable: false,
			wantTrace:     []string{},
		},
		{
			name:      "incorrect attempt writes nothing",
			userID:    "user-1",
			attemptID: "attempt-1",
			correct:   false,
			setupRepo: func(f *FakeGamificationRepo) {},
			lookup:    &FakeAttemptLookup{},
			want: gamificationtypes.OutcomeResult{
				Stats:         gamificationtypes.EmptyStats("user-1"),
				NewBadges:     []gamificationtypes.BadgeKind{},
				AwardedBadges: []gamificationtypes.BadgeKind{},
			},
			wantTrace: []string{},
		},
		{
			name:      "first success with special operand",
			userID:    "user-1",
			attemptID: "attempt-1",
			correct:   true,
			setupRepo: func(f *FakeGamificationRepo) {
				f.GetTotalScoreFunc = func(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) (int, error) {
					return 10, nil
				}
				f.GetScoreEventsFunc = func(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) ([]gamificationdb.ScoreEvent, error) {
					return scoreEvents(1), nil
				}
			},
			lookup: operandsLookup(44, 2),
			want: gamificationtypes.OutcomeResult{
				Stats: gamificationtypes.UserGameStats{
					UserID:     "user-1",
					TotalScore: 10,
					Badges:     []gamificationtypes.BadgeKind{gamificationtypes.BadgeFirstSuccess, gamificationtypes.BadgeSpecialValue},
				},
				NewBadges:     []gamificationtypes.BadgeKind{gamificationtypes.BadgeFirstSuccess, gamificationtypes.BadgeSpecialValue},
				AwardedBadges: []gamificationtypes.BadgeKind{gamificationtypes.BadgeFirstSuccess, gamificationtypes.BadgeSpecialValue},
			},
			wantTrace:   withGrants(2),
			wantLookups: 1,
		},
		{
			name:      "duplicate attempt is absorbed",
			userID:    "user-1",
			attemptID: "attempt-1",
			correct:   true,
			setupRepo: func(f *FakeGamificationRepo) {
				f.AppendScoreEventFunc = func(ctx context.Context, db bun.IDB, event *gamificationdb.ScoreEvent) error {
					return gamificationdb.ErrDuplicate
				}
				f.GetTotalScoreFunc = func(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) (int, error) {
					return 10, nil
				}
				f.GetScoreEventsFunc = func(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) ([]gamificationdb.ScoreEvent, error) {
					return scoreEvents(1), nil
				}
				f.GetBadgeGrantsFunc = func(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) ([]gamificationdb.BadgeGrant, error) {
					return []gamificationdb.BadgeGrant{{UserID: userID, BadgeKind: gamificationtypes.BadgeFirstSuccess, AttemptID: "attempt-1"}}, nil
				}
			},
			lookup: &FakeAttemptLookup{},
			want: gamificationtypes.OutcomeResult{
				Stats: gamificationtypes.UserGameStats{
					UserID:     "user-1",
					TotalScore: 10,
					Badges:     []gamificationtypes.BadgeKind{gamificationtypes.BadgeFirstSuccess},
				},
				NewBadges:     []gamificationtypes.BadgeKind{},
				AwardedBadges: []gamificationtypes.BadgeKind{gamificationtypes.BadgeFirstSuccess},
			},
			wantTrace:   withGrants(0),
			wantLookups: 1,
		},
		{
			name:      "unknown attempt is not retryable",
			userID:    "user-1",
			attemptID: "attempt-1",
			correct:   true,
			setupRepo: func(f *FakeGamificationRepo) {},
			lookup: &FakeAttemptLookup{
				LookupAttemptFunc: func(ctx context.Context, attemptID gamificationtypes.AttemptID) (gamificationtypes.AttemptOperands, error) {
					return gamificationtypes.AttemptOperands{}, ErrAttemptNotFound
				},
			},
			wantErrIs:     []error{ErrAttemptNotFound, ErrLookupFailed},
			wantRetryable: false,
			wantTrace:     withGrants(0),
			wantLookups:   1,
		},
		{
			name:      "lookup transport failure is retryable",
			userID:    "user-1",
			attemptID: "attempt-1",
			correct:   true,
			setupRepo: func(f *FakeGamificationRepo) {},
			lookup: &FakeAttemptLookup{
				LookupAttemptFunc: func(ctx context.Context, attemptID gamificationtypes.AttemptID) (gamificationtypes.AttemptOperands, error) {
					return gamificationtypes.AttemptOperands{}, context.DeadlineExceeded
				},
			},
			wantErrIs:     []error{ErrLookupFailed, context.DeadlineExceeded},
			wantErrNotIs:  ErrAttemptNotFound,
			wantRetryable: true,
			wantTrace:     withGrants(0),
			wantLookups:   1,
		},
		{
			name:      "score ledger failure stops before lookup",
			userID:    "user-1",
			attemptID: "attempt-1",
			correct:   true,
			setupRepo: func(f *FakeGamificationRepo) {
				f.AppendScoreEventFunc = func(ctx context.Context, db bun.IDB, event *gamificationdb.ScoreEvent) error {
					return errors.New("connection refused")
				}
			},
			lookup:        &FakeAttemptLookup{},
			wantRetryable: true,
			wantTrace:     []string{"AppendScoreEvent"},
		},
		{
			name:      "concurrent grant is absorbed and still held",
			userID:    "user-1",
			attemptID: "attempt-10",
			correct:   true,
			setupRepo: func(f *FakeGamificationRepo) {
				f.GetTotalScoreFunc = func(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) (int, error) {
					return 100, nil
				}
				f.GetScoreEventsFunc = func(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) ([]gamificationdb.ScoreEvent, error) {
					return scoreEvents(10), nil
				}
				f.AppendBadgeGrantFunc = func(ctx context.Context, db bun.IDB, grant *gamificationdb.BadgeGrant) error {
					return gamificationdb.ErrDuplicate
				}
			},
			lookup: &FakeAttemptLookup{},
			want: gamificationtypes.OutcomeResult{
				Stats: gamificationtypes.UserGameStats{
					UserID:     "user-1",
					TotalScore: 100,
					Badges:     []gamificationtypes.BadgeKind{gamificationtypes.BadgeBronze},
				},
				NewBadges:     []gamificationtypes.BadgeKind{},
				AwardedBadges: []gamificationtypes.BadgeKind{},
			},
			wantTrace:   withGrants(1),
			wantLookups: 1,
		},
		{
			name:      "badge ledger failure is retryable",
			userID:    "user-1",
			attemptID: "attempt-1",
			correct:   true,
			setupRepo: func(f *FakeGamificationRepo) {
				f.GetTotalScoreFunc = func(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) (int, error) {
					return 10, nil
				}
				f.GetScoreEventsFunc = func(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) ([]gamificationdb.ScoreEvent, error) {
					return scoreEvents(1), nil
				}
				f.AppendBadgeGrantFunc = func(ctx context.Context, db bun.IDB, grant *gamificationdb.BadgeGrant) error {
					return errors.New("disk full")
				}
			},
			lookup:        &FakeAttemptLookup{},
			wantRetryable: true,
			wantTrace:     withGrants(1),
			wantLookups:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fakeRepo := NewFakeGamificationRepo()
			tt.setupRepo(fakeRepo)

			svc := newTestService(fakeRepo, tt.lookup)

			got, err := svc.RecordOutcome(context.Background(), tt.userID, tt.attemptID, tt.correct)

			assert.Equal(t, tt.wantTrace, fakeRepo.Trace())
			assert.Equal(t, tt.wantLookups, tt.lookup.Calls())

			wantErr := len(tt.wantErrIs) > 0 || tt.wantRetryable
			if wantErr {
				assert.Error(t, err)
				for _, target := range tt.wantErrIs {
					assert.ErrorIs(t, err, target)
				}
				if tt.wantErrNotIs != nil {
					assert.NotErrorIs(t, err, tt.wantErrNotIs)
				}
				assert.Equal(t, tt.wantRetryable, IsRetryable(err))
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordOutcome_ScorePerEventFromConfig(t *testing.T) {
	var appended *gamificationdb.ScoreEvent
	fakeRepo := NewFakeGamificationRepo()
	fakeRepo.AppendScoreEventFunc = func(ctx context.Context, db bun.IDB, event *gamificationdb.ScoreEvent) error {
		appended = event
		return nil
	}

	rules := DefaultRuleConfig()
	rules.ScorePerEvent = 25
	svc := NewGamificationService(fakeRepo, &FakeAttemptLookup{}, rules, nil, nil, nil, nil)

	_, err := svc.RecordOutcome(context.Background(), "user-1", "attempt-1", true)
	assert.NoError(t, err)
	if assert.NotNil(t, appended) {
		assert.Equal(t, 25, appended.Score)
		assert.Equal(t, gamificationtypes.UserID("user-1"), appended.UserID)
		assert.Equal(t, gamificationtypes.AttemptID("attempt-1"), appended.AttemptID)
	}
}

func TestRecordOutcome_PanicIsRecovered(t *testing.T) {
	fakeRepo := NewFakeGamificationRepo()
	fakeRepo.AppendScoreEventFunc = func(ctx context.Context, db bun.IDB, event *gamificationdb.ScoreEvent) error {
		panic("boom")
	}
	svc := newTestService(fakeRepo, &FakeAttemptLookup{})

	_, err := svc.RecordOutcome(context.Background(), "user-1", "attempt-1", true)
	assert.ErrorContains(t, err, "panic in RecordOutcome")
	assert.True(t, IsRetryable(err))
}

func TestRecordOutcome_OperationMetrics(t *testing.T) {
	tests := []struct {
		name         string
		userID       gamificationtypes.UserID
		lookup       *FakeAttemptLookup
		wantSuccess  int
		wantFailures int
	}{
		{
			name:        "scored outcome counts as success",
			userID:      "user-1",
			lookup:      &FakeAttemptLookup{},
			wantSuccess: 1,
		},
		{
			name:         "invalid outcome counts as failure",
			userID:       "",
			lookup:       &FakeAttemptLookup{},
			wantFailures: 1,
		},
		{
			name:   "unknown attempt counts as failure",
			userID: "user-1",
			lookup: &FakeAttemptLookup{
				LookupAttemptFunc: func(ctx context.Context, attemptID gamificationtypes.AttemptID) (gamificationtypes.AttemptOperands, error) {
					return gamificationtypes.AttemptOperands{}, ErrAttemptNotFound
				},
			},
			wantFailures: 1,
		},
		{
			name:   "lookup transport error counts as failure",
			userID: "user-1",
			lookup: &FakeAttemptLookup{
				LookupAttemptFunc: func(ctx context.Context, attemptID gamificationtypes.AttemptID) (gamificationtypes.AttemptOperands, error) {
					return gamificationtypes.AttemptOperands{}, errors.New("no responders")
				},
			},
			wantFailures: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := NewFakeMetrics()
			svc := NewGamificationService(NewFakeGamificationRepo(), tt.lookup, DefaultRuleConfig(), slog.Default(), metrics, nil, nil)

			_, _ = svc.RecordOutcome(context.Background(), tt.userID, "attempt-1", true)

			success, failures := metrics.Counts("RecordOutcome")
			assert.Equal(t, tt.wantSuccess, success, "success count")
			assert.Equal(t, tt.wantFailures, failures, "failure count")
		})
	}
}

func TestStatsForUser_InvalidUserCountsAsFailure(t *testing.T) {
	metrics := NewFakeMetrics()
	svc := NewGamificationService(NewFakeGamificationRepo(), &FakeAttemptLookup{}, DefaultRuleConfig(), slog.Default(), metrics, nil, nil)

	_, err := svc.StatsForUser(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidUserID)

	success, failures := metrics.Counts("StatsForUser")
	assert.Zero(t, success)
	assert.Equal(t, 1, failures)
}

func TestStatsForUser(t *testing.T) {
	tests := []struct {
		name      string
		userID    gamificationtypes.UserID
		setupRepo func(*FakeGamificationRepo)
		want      gamificationtypes.UserGameStats
		wantErrIs error
		wantErr   bool
		wantTrace []string
	}{
		{
			name:   "badges are distinct and canonically ordered",
			userID: "user-1",
			setupRepo: func(f *FakeGamificationRepo) {
				f.GetTotalScoreFunc = func(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) (int, error) {
					return 120, nil
				}
				f.GetBadgeGrantsFunc = func(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) ([]gamificationdb.BadgeGrant, error) {
					return []gamificationdb.BadgeGrant{
						{UserID: userID, BadgeKind: gamificationtypes.BadgeSpecialValue},
						{UserID: userID, BadgeKind: gamificationtypes.BadgeBronze},
						{UserID: userID, BadgeKind: gamificationtypes.BadgeFirstSuccess},
					}, nil
				}
			},
			want: gamificationtypes.UserGameStats{
				UserID:     "user-1",
				TotalScore: 120,
				Badges: []gamificationtypes.BadgeKind{
					gamificationtypes.BadgeBronze,
					gamificationtypes.BadgeFirstSuccess,
					gamificationtypes.BadgeSpecialValue,
				},
			},
			wantTrace: []string{"GetTotalScore", "GetBadgeGrants"},
		},
		{
			name:      "unknown user gets an empty aggregate",
			userID:    "nobody",
			setupRepo: func(f *FakeGamificationRepo) {},
			want:      gamificationtypes.EmptyStats("nobody"),
			wantTrace: []string{"GetTotalScore", "GetBadgeGrants"},
		},
		{
			name:      "empty user id",
			userID:    "",
			setupRepo: func(f *FakeGamificationRepo) {},
			wantErr:   true,
			wantErrIs: ErrInvalidUserID,
			wantTrace: []string{},
		},
		{
			name:   "storage failure",
			userID: "user-1",
			setupRepo: func(f *FakeGamificationRepo) {
				f.GetTotalScoreFunc = func(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) (int, error) {
					return 0, errors.New("connection reset")
				}
			},
			wantErr:   true,
			wantTrace: []string{"GetTotalScore"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fakeRepo := NewFakeGamificationRepo()
			tt.setupRepo(fakeRepo)

			svc := newTestService(fakeRepo, &FakeAttemptLookup{})
			got, err := svc.StatsForUser(context.Background(), tt.userID)

			assert.Equal(t, tt.wantTrace, fakeRepo.Trace())
			if tt.wantErr {
				assert.Error(t, err)
				if tt.wantErrIs != nil {
					assert.ErrorIs(t, err, tt.wantErrIs)
				}
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCurrentLeaderboard(t *testing.T) {
	var requestedLimit int
	fakeRepo := NewFakeGamificationRepo()
	fakeRepo.GetTopScoresFunc = func(ctx context.Context, db bun.IDB, limit int) ([]gamificationtypes.LeaderboardRow, error) {
		requestedLimit = limit
		return []gamificationtypes.LeaderboardRow{
			{UserID: "zoe", TotalScore: 30},
			{UserID: "bob", TotalScore: 50},
			{UserID: "amy", TotalScore: 30},
			{UserID: "cat", TotalScore: 10},
		}, nil
	}

	rules := DefaultRuleConfig()
	rules.LeaderboardSize = 3
	svc := NewGamificationService(fakeRepo, &FakeAttemptLookup{}, rules, slog.Default(), gamificationmetrics.NewNoop(), nil, nil)

	got, err := svc.CurrentLeaderboard(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 3, requestedLimit)
	assert.Equal(t, []gamificationtypes.LeaderboardRow{
		{UserID: "bob", TotalScore: 50},
		{UserID: "amy", TotalScore: 30},
		{UserID: "zoe", TotalScore: 30},
	}, got)
}

func TestCurrentLeaderboard_StorageFailure(t *testing.T) {
	fakeRepo := NewFakeGamificationRepo()
	fakeRepo.GetTopScoresFunc = func(ctx context.Context, db bun.IDB, limit int) ([]gamificationtypes.LeaderboardRow, error) {
		return nil, errors.New("timeout")
	}
	svc := newTestService(fakeRepo, &FakeAttemptLookup{})

	_, err := svc.CurrentLeaderboard(context.Background())
	assert.ErrorContains(t, err, "timeout")
}
