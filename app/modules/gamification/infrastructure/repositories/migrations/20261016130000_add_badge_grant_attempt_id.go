package gamificationmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Adding attempt_id to gamification_badge_grants...")

		if _, err := db.ExecContext(ctx, `ALTER TABLE gamification_badge_grants ADD COLUMN IF NOT EXISTS attempt_id VARCHAR`); err != nil {
			return fmt.Errorf("failed to add badge grant attempt_id: %w", err)
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping attempt_id from gamification_badge_grants...")

		_, err := db.ExecContext(ctx, `ALTER TABLE gamification_badge_grants DROP COLUMN IF EXISTS attempt_id`)
		return err
	})
}
