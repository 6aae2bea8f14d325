package gamificationservice

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	gamificationtypes "github.com/angelgru/gamification/app/modules/gamification/domain/types"
	"github.com/angelgru/gamification/app/results"
	"github.com/uptrace/bun"
)

var readOnlyTx = &sql.TxOptions{ReadOnly: true}

// StatsForUser returns the user's total score and distinct badges. A user
// with no history gets a zero aggregate.
func (s *GamificationService) StatsForUser(ctx context.Context, userID gamificationtypes.UserID) (gamificationtypes.UserGameStats, error) {
	statsTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[gamificationtypes.UserGameStats, error], error) {
		return s.statsForUserLogic(ctx, db, userID)
	}

	result, err := withTelemetry(s, ctx, "StatsForUser", userID.String(), func(ctx context.Context) (results.OperationResult[gamificationtypes.UserGameStats, error], error) {
		return runInTx(s, ctx, readOnlyTx, statsTx)
	})
	return unwrap(result, err)
}

func (s *GamificationService) statsForUserLogic(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) (results.OperationResult[gamificationtypes.UserGameStats, error], error) {
	if userID == "" {
		return results.FailureResult[gamificationtypes.UserGameStats, error](ErrInvalidUserID), nil
	}

	total, err := s.repo.GetTotalScore(ctx, db, userID)
	if err != nil {
		return results.OperationResult[gamificationtypes.UserGameStats, error]{}, fmt.Errorf("failed to load total score: %w", err)
	}
	grants, err := s.repo.GetBadgeGrants(ctx, db, userID)
	if err != nil {
		return results.OperationResult[gamificationtypes.UserGameStats, error]{}, fmt.Errorf("failed to load badge grants: %w", err)
	}

	held := make(map[gamificationtypes.BadgeKind]struct{}, len(grants))
	for _, g := range grants {
		held[g.BadgeKind] = struct{}{}
	}
	return results.SuccessResult[gamificationtypes.UserGameStats, error](statsFrom(userID, total, held)), nil
}

// CurrentLeaderboard returns at most LeaderboardSize rows ranked by total
// score descending, ties broken by user ID ascending.
func (s *GamificationService) CurrentLeaderboard(ctx context.Context) ([]gamificationtypes.LeaderboardRow, error) {
	result, err := withTelemetry(s, ctx, "CurrentLeaderboard", "leaderboard", func(ctx context.Context) (results.OperationResult[[]gamificationtypes.LeaderboardRow, error], error) {
		return s.currentLeaderboardLogic(ctx)
	})
	return unwrap(result, err)
}

func (s *GamificationService) currentLeaderboardLogic(ctx context.Context) (results.OperationResult[[]gamificationtypes.LeaderboardRow, error], error) {
	rows, err := s.repo.GetTopScores(ctx, nil, s.rules.LeaderboardSize)
	if err != nil {
		return results.OperationResult[[]gamificationtypes.LeaderboardRow, error]{}, fmt.Errorf("failed to load top scores: %w", err)
	}

	ranked := make([]gamificationtypes.LeaderboardRow, len(rows))
	copy(ranked, rows)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].TotalScore != ranked[j].TotalScore {
			return ranked[i].TotalScore > ranked[j].TotalScore
		}
		return ranked[i].UserID < ranked[j].UserID
	})
	if len(ranked) > s.rules.LeaderboardSize {
		ranked = ranked[:s.rules.LeaderboardSize]
	}
	return results.SuccessResult[[]gamificationtypes.LeaderboardRow, error](ranked), nil
}
