package gamificationservice

import (
	"context"

	gamificationtypes "github.com/angelgru/gamification/app/modules/gamification/domain/types"
)

// Service is the gamification engine plus its read-only queries.
type Service interface {
	// RecordOutcome scores a correct attempt and grants every badge the user
	// has become eligible for. Incorrect attempts are acknowledged without writes.
	RecordOutcome(ctx context.Context, userID gamificationtypes.UserID, attemptID gamificationtypes.AttemptID, correct bool) (gamificationtypes.OutcomeResult, error)

	// StatsForUser returns the user's total score and distinct badges.
	StatsForUser(ctx context.Context, userID gamificationtypes.UserID) (gamificationtypes.UserGameStats, error)

	// CurrentLeaderboard returns the top users by total score.
	CurrentLeaderboard(ctx context.Context) ([]gamificationtypes.LeaderboardRow, error)
}

// AttemptLookup resolves the operands of an attempt owned by the quiz service.
//
// Implementations return an error matching ErrAttemptNotFound when the attempt
// does not exist. Any other error is treated as a transient transport failure.
type AttemptLookup interface {
	LookupAttempt(ctx context.Context, attemptID gamificationtypes.AttemptID) (gamificationtypes.AttemptOperands, error)
}
