package gamificationdb

import (
	"context"
	"time"

	gamificationtypes "github.com/angelgru/gamification/app/modules/gamification/domain/types"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ScoreEvent records the score earned by one correct attempt.
type ScoreEvent struct {
	bun.BaseModel `bun:"table:gamification_score_events,alias:se"`

	ID        uuid.UUID                   `bun:"id,pk,type:uuid"`
	UserID    gamificationtypes.UserID    `bun:"user_id,notnull"`
	AttemptID gamificationtypes.AttemptID `bun:"attempt_id,notnull,unique"`
	Score     int                         `bun:"score,notnull"`
	ScoredAt  time.Time                   `bun:"scored_at,nullzero,notnull,default:current_timestamp"`
}

var _ bun.BeforeInsertHook = (*ScoreEvent)(nil)

func (e *ScoreEvent) BeforeInsert(ctx context.Context, _ *bun.InsertQuery) error {
	e.prepare()
	return nil
}

func (e *ScoreEvent) prepare() {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.ScoredAt.IsZero() {
		e.ScoredAt = time.Now().UTC()
	}
}

// BadgeGrant records that a user earned a badge kind. AttemptID names the
// attempt whose outcome triggered the grant.
type BadgeGrant struct {
	bun.BaseModel `bun:"table:gamification_badge_grants,alias:bg"`

	ID        uuid.UUID                   `bun:"id,pk,type:uuid"`
	UserID    gamificationtypes.UserID    `bun:"user_id,notnull,unique:uq_badge_grants_user_kind"`
	BadgeKind gamificationtypes.BadgeKind `bun:"badge_kind,notnull,unique:uq_badge_grants_user_kind"`
	AttemptID gamificationtypes.AttemptID `bun:"attempt_id,nullzero"`
	GrantedAt time.Time                   `bun:"granted_at,nullzero,notnull,default:current_timestamp"`
}

var _ bun.BeforeInsertHook = (*BadgeGrant)(nil)

func (g *BadgeGrant) BeforeInsert(ctx context.Context, _ *bun.InsertQuery) error {
	g.prepare()
	return nil
}

func (g *BadgeGrant) prepare() {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.GrantedAt.IsZero() {
		g.GrantedAt = time.Now().UTC()
	}
}

// leaderboardRow is the scan target for the grouped leaderboard query.
type leaderboardRow struct {
	UserID     gamificationtypes.UserID `bun:"user_id"`
	TotalScore int                      `bun:"total_score"`
}
