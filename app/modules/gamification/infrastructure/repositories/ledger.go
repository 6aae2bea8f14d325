package gamificationdb

import (
	"context"
	"errors"
	"fmt"

	gamificationtypes "github.com/angelgru/gamification/app/modules/gamification/domain/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Impl implements Repository using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new gamification ledger repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

// resolveDB returns the provided db handle, falling back to the repository's
// default connection if db is nil.
func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

// AppendScoreEvent stores a new score event, reporting ErrDuplicate when the
// attempt already has one.
func (r *Impl) AppendScoreEvent(ctx context.Context, db bun.IDB, event *ScoreEvent) error {
	db = r.resolveDB(db)
	event.prepare()
	res, err := db.NewInsert().
		Model(event).
		On("CONFLICT (attempt_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("gamificationdb.AppendScoreEvent: %w", err)
	}
	return checkInserted(res, "gamificationdb.AppendScoreEvent")
}

// GetTotalScore returns the user's cumulative score.
func (r *Impl) GetTotalScore(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) (int, error) {
	db = r.resolveDB(db)
	var total int
	err := db.NewSelect().
		Model((*ScoreEvent)(nil)).
		ColumnExpr("COALESCE(SUM(score), 0)").
		Where("user_id = ?", userID).
		Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("gamificationdb.GetTotalScore: %w", err)
	}
	return total, nil
}

// GetScoreEvents returns the user's score events, most recent first.
func (r *Impl) GetScoreEvents(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) ([]ScoreEvent, error) {
	db = r.resolveDB(db)
	var events []ScoreEvent
	err := db.NewSelect().
		Model(&events).
		Where("user_id = ?", userID).
		Order("scored_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("gamificationdb.GetScoreEvents: %w", err)
	}
	return events, nil
}

// GetTopScores returns the leaderboard projection of the score ledger.
func (r *Impl) GetTopScores(ctx context.Context, db bun.IDB, limit int) ([]gamificationtypes.LeaderboardRow, error) {
	db = r.resolveDB(db)
	var rows []leaderboardRow
	err := db.NewSelect().
		Model((*ScoreEvent)(nil)).
		Column("user_id").
		ColumnExpr("SUM(score) AS total_score").
		Group("user_id").
		OrderExpr("total_score DESC, user_id ASC").
		Limit(limit).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("gamificationdb.GetTopScores: %w", err)
	}

	out := make([]gamificationtypes.LeaderboardRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, gamificationtypes.LeaderboardRow{UserID: row.UserID, TotalScore: row.TotalScore})
	}
	return out, nil
}

// AppendBadgeGrant stores a new badge grant, reporting ErrDuplicate when the
// user already holds the kind.
func (r *Impl) AppendBadgeGrant(ctx context.Context, db bun.IDB, grant *BadgeGrant) error {
	db = r.resolveDB(db)
	grant.prepare()
	res, err := db.NewInsert().
		Model(grant).
		On("CONFLICT (user_id, badge_kind) DO NOTHING").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("gamificationdb.AppendBadgeGrant: %w", err)
	}
	return checkInserted(res, "gamificationdb.AppendBadgeGrant")
}

// GetBadgeGrants returns the user's badge grants, most recent first.
func (r *Impl) GetBadgeGrants(ctx context.Context, db bun.IDB, userID gamificationtypes.UserID) ([]BadgeGrant, error) {
	db = r.resolveDB(db)
	var grants []BadgeGrant
	err := db.NewSelect().
		Model(&grants).
		Where("user_id = ?", userID).
		Order("granted_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("gamificationdb.GetBadgeGrants: %w", err)
	}
	return grants, nil
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

// checkInserted maps an insert that was skipped by ON CONFLICT DO NOTHING to ErrDuplicate.
func checkInserted(res rowsAffecter, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get rows affected: %w", op, err)
	}
	if rows == 0 {
		return ErrDuplicate
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == uniqueViolation
	}
	return false
}
