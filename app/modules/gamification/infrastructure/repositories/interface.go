package gamificationdb

import (
	"context"

	gamificationtypes "github.com/angelgru/gamification/app/modules/gamification/domain/types"
	"github.com/uptrace/bun"
)

// ScoreLedger is the append-only store of per-user score events.
// All methods accept an optional bun.IDB so callers can run them inside a
// transaction; a nil db uses the repository's own connection.
//
// Error semantics:
//   - ErrDuplicate: an event for the same attempt already exists
//   - Other errors: infrastructure failures (connection, query errors)
type ScoreLedger interface {
	// AppendScoreEvent stores a new score event. It returns ErrDuplicate when the
	// attempt has already been scored and leaves the ledger unchanged.
	AppendScoreEvent(ctx context.Context, db bun.IDB, event *ScoreEvent) error

	// GetTotalScore returns the sum of all score events for a user, 0 when none exist.
	GetTotalScore(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) (int, error)

	// GetScoreEvents returns every score event for a user, most recent first.
	GetScoreEvents(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) ([]ScoreEvent, error)

	// GetTopScores groups the ledger by user and returns at most limit rows,
	// ordered by total score descending then user ID ascending.
	GetTopScores(ctx context.Context, db bun.IDB, limit int) ([]gamificationtypes.LeaderboardRow, error)
}

// BadgeLedger is the append-only store of per-user badge grants.
//
// Error semantics:
//   - ErrDuplicate: the user already holds the badge kind
//   - Other errors: infrastructure failures
type BadgeLedger interface {
	// AppendBadgeGrant stores a new badge grant. It returns ErrDuplicate when the
	// user already holds the kind and leaves the ledger unchanged.
	AppendBadgeGrant(ctx context.Context, db bun.IDB, grant *BadgeGrant) error

	// GetBadgeGrants returns every badge grant for a user, most recent first.
	GetBadgeGrants(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) ([]BadgeGrant, error)
}

// Repository bundles both ledgers.
type Repository interface {
	ScoreLedger
	BadgeLedger
}
