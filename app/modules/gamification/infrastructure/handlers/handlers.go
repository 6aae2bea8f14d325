package gamificationhandlers

import (
	"context"
	"log/slog"

	gamificationservice "github.com/angelgru/gamification/app/modules/gamification/application"
	gamificationevents "github.com/angelgru/gamification/app/modules/gamification/domain/events"
	"github.com/angelgru/gamification/app/observability/attr"
	"go.opentelemetry.io/otel/trace"
)

// GamificationHandlers implements the Handlers interface.
type GamificationHandlers struct {
	service gamificationservice.Service
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewGamificationHandlers creates a new GamificationHandlers instance.
func NewGamificationHandlers(
	service gamificationservice.Service,
	logger *slog.Logger,
	tracer trace.Tracer,
) Handlers {
	return &GamificationHandlers{
		service: service,
		logger:  logger,
		tracer:  tracer,
	}
}

// HandleAttemptSolved records the outcome. Correct attempts publish the
// updated aggregate, and a badge notification when the attempt earned any.
// A redelivered attempt repeats both, so consumers must tolerate duplicates.
func (h *GamificationHandlers) HandleAttemptSolved(ctx context.Context, payload *gamificationevents.AttemptSolvedPayloadV1) ([]Result, error) {
	ctx, span := h.tracer.Start(ctx, "GamificationHandlers.HandleAttemptSolved")
	defer span.End()

	h.logger.InfoContext(ctx, "Attempt outcome received",
		attr.ExtractCorrelationID(ctx),
		attr.UserID(payload.UserID.String()),
		attr.AttemptID(payload.AttemptID.String()),
		attr.Bool("correct", payload.Correct),
	)

	outcome, err := h.service.RecordOutcome(ctx, payload.UserID, payload.AttemptID, payload.Correct)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to record attempt outcome",
			attr.ExtractCorrelationID(ctx),
			attr.AttemptID(payload.AttemptID.String()),
			attr.Bool("retryable", gamificationservice.IsRetryable(err)),
			attr.Error(err),
		)
		span.RecordError(err)
		return nil, err
	}

	if !payload.Correct {
		return nil, nil
	}

	results := []Result{{
		Topic: gamificationevents.StatsUpdatedV1,
		Payload: &gamificationevents.StatsUpdatedPayloadV1{
			UserID:     outcome.Stats.UserID,
			AttemptID:  payload.AttemptID,
			TotalScore: outcome.Stats.TotalScore,
			Badges:     outcome.Stats.Badges,
		},
	}}

	if len(outcome.AwardedBadges) > 0 {
		results = append(results, Result{
			Topic: gamificationevents.BadgesAwardedV1,
			Payload: &gamificationevents.BadgesAwardedPayloadV1{
				UserID:    outcome.Stats.UserID,
				AttemptID: payload.AttemptID,
				Badges:    outcome.AwardedBadges,
			},
		})
	}

	return results, nil
}
