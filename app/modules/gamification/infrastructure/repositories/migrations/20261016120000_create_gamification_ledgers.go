package gamificationmigrations

import (
	"context"
	"fmt"

	gamificationdb "github.com/angelgru/gamification/app/modules/gamification/infrastructure/repositories"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating gamification_score_events and gamification_badge_grants tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.NewCreateTable().Model((*gamificationdb.ScoreEvent)(nil)).IfNotExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to create score events table: %w", err)
			}

			if _, err := tx.NewCreateTable().Model((*gamificationdb.BadgeGrant)(nil)).IfNotExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to create badge grants table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE INDEX IF NOT EXISTS idx_score_events_user_id ON gamification_score_events (user_id);
				CREATE INDEX IF NOT EXISTS idx_score_events_user_scored_at ON gamification_score_events (user_id, scored_at DESC);
				CREATE INDEX IF NOT EXISTS idx_badge_grants_user_id ON gamification_badge_grants (user_id);
			`); err != nil {
				return fmt.Errorf("failed to create gamification indexes: %w", err)
			}

			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping gamification_score_events and gamification_badge_grants tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.NewDropTable().Model((*gamificationdb.BadgeGrant)(nil)).IfExists().Exec(ctx); err != nil {
				return err
			}
			if _, err := tx.NewDropTable().Model((*gamificationdb.ScoreEvent)(nil)).IfExists().Exec(ctx); err != nil {
				return err
			}
			return nil
		})
	})
}
