package gamificationmetrics

import (
	"context"
	"time"
)

// GamificationMetrics records service-level activity of the gamification module.
type GamificationMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)

	RecordScoreEvent(ctx context.Context, score int)
	RecordDuplicateAttempt(ctx context.Context)
	RecordBadgeGranted(ctx context.Context, badgeKind string)
	RecordLookupFailure(ctx context.Context, reason string)
}
