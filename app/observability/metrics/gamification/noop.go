package gamificationmetrics

import (
	"context"
	"time"
)

type noop struct{}

// NewNoop returns metrics that discard everything.
func NewNoop() GamificationMetrics {
	return noop{}
}

func (noop) RecordOperationAttempt(context.Context, string, string)                 {}
func (noop) RecordOperationSuccess(context.Context, string, string)                 {}
func (noop) RecordOperationFailure(context.Context, string, string)                 {}
func (noop) RecordOperationDuration(context.Context, string, string, time.Duration) {}
func (noop) RecordScoreEvent(context.Context, int)                                  {}
func (noop) RecordDuplicateAttempt(context.Context)                                 {}
func (noop) RecordBadgeGranted(context.Context, string)                             {}
func (noop) RecordLookupFailure(context.Context, string)                            {}
