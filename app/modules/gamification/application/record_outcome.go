package gamificationservice

import (
	"context"
	"errors"
	"fmt"

	gamificationtypes "github.com/angelgru/gamification/app/modules/gamification/domain/types"
	gamificationdb "github.com/angelgru/gamification/app/modules/gamification/infrastructure/repositories"
	"github.com/angelgru/gamification/app/observability/attr"
	"github.com/angelgru/gamification/app/results"
)

type outcomeResult = results.OperationResult[gamificationtypes.OutcomeResult, error]

// RecordOutcome scores a correct attempt and evaluates the badge rules.
//
// Ledger writes are not wrapped in a transaction. Each append is idempotent,
// so a redelivered outcome converges on the same state after a partial failure.
func (s *GamificationService) RecordOutcome(
	ctx context.Context,
	userID gamificationtypes.UserID,
	attemptID gamificationtypes.AttemptID,
	correct bool,
) (gamificationtypes.OutcomeResult, error) {
	result, err := withTelemetry(s, ctx, "RecordOutcome", attemptID.String(), func(ctx context.Context) (outcomeResult, error) {
		return s.recordOutcomeLogic(ctx, userID, attemptID, correct)
	})
	return unwrap(result, err)
}

func (s *GamificationService) recordOutcomeLogic(
	ctx context.Context,
	userID gamificationtypes.UserID,
	attemptID gamificationtypes.AttemptID,
	correct bool,
) (outcomeResult, error) {
	if userID == "" || attemptID == "" {
		return results.FailureResult[gamificationtypes.OutcomeResult, error](
			fmt.Errorf("%w: user_id=%q attempt_id=%q", ErrInvalidOutcome, userID, attemptID),
		), nil
	}

	if !correct {
		s.logger.InfoContext(ctx, "Incorrect attempt, nothing to score",
			attr.ExtractCorrelationID(ctx),
			attr.UserID(userID.String()),
			attr.AttemptID(attemptID.String()),
		)
		return results.SuccessResult[gamificationtypes.OutcomeResult, error](gamificationtypes.OutcomeResult{
			Stats:         gamificationtypes.EmptyStats(userID),
			NewBadges:     []gamificationtypes.BadgeKind{},
			AwardedBadges: []gamificationtypes.BadgeKind{},
		}), nil
	}

	event := &gamificationdb.ScoreEvent{
		UserID:    userID,
		AttemptID: attemptID,
		Score:     s.rules.ScorePerEvent,
	}
	if err := s.repo.AppendScoreEvent(ctx, nil, event); err != nil {
		if !errors.Is(err, gamificationdb.ErrDuplicate) {
			return outcomeResult{}, fmt.Errorf("failed to append score event: %w", err)
		}
		s.logger.InfoContext(ctx, "Attempt already scored",
			attr.ExtractCorrelationID(ctx),
			attr.UserID(userID.String()),
			attr.AttemptID(attemptID.String()),
		)
		if s.metrics != nil {
			s.metrics.RecordDuplicateAttempt(ctx)
		}
	} else if s.metrics != nil {
		s.metrics.RecordScoreEvent(ctx, event.Score)
	}

	total, err := s.repo.GetTotalScore(ctx, nil, userID)
	if err != nil {
		return outcomeResult{}, fmt.Errorf("failed to load total score: %w", err)
	}
	scoreEvents, err := s.repo.GetScoreEvents(ctx, nil, userID)
	if err != nil {
		return outcomeResult{}, fmt.Errorf("failed to load score events: %w", err)
	}
	grants, err := s.repo.GetBadgeGrants(ctx, nil, userID)
	if err != nil {
		return outcomeResult{}, fmt.Errorf("failed to load badge grants: %w", err)
	}

	operands, err := s.lookup.LookupAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, ErrAttemptNotFound) {
			if s.metrics != nil {
				s.metrics.RecordLookupFailure(ctx, "not_found")
			}
			return results.FailureResult[gamificationtypes.OutcomeResult, error](
				fmt.Errorf("attempt %s: %w", attemptID, err),
			), nil
		}
		if s.metrics != nil {
			s.metrics.RecordLookupFailure(ctx, "transport")
		}
		return outcomeResult{}, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}

	held := make(map[gamificationtypes.BadgeKind]struct{}, len(grants))
	var awarded []gamificationtypes.BadgeKind
	for _, g := range grants {
		held[g.BadgeKind] = struct{}{}
		if g.AttemptID == attemptID {
			awarded = append(awarded, g.BadgeKind)
		}
	}

	candidates := grantedKinds(s.rules.EvaluateRules(RuleInput{
		TotalScore:      total,
		ScoreEventCount: len(scoreEvents),
		Operands:        operands,
	}, held))

	newBadges := make([]gamificationtypes.BadgeKind, 0, len(candidates))
	for _, kind := range candidates {
		err := s.repo.AppendBadgeGrant(ctx, nil, &gamificationdb.BadgeGrant{UserID: userID, BadgeKind: kind, AttemptID: attemptID})
		switch {
		case err == nil:
			newBadges = append(newBadges, kind)
			awarded = append(awarded, kind)
			if s.metrics != nil {
				s.metrics.RecordBadgeGranted(ctx, string(kind))
			}
		case errors.Is(err, gamificationdb.ErrDuplicate):
			// Granted by a concurrent outcome for the same user.
		default:
			return outcomeResult{}, fmt.Errorf("failed to append badge grant %s: %w", kind, err)
		}
		held[kind] = struct{}{}
	}

	if len(newBadges) > 0 {
		s.logger.InfoContext(ctx, "Badges granted",
			attr.ExtractCorrelationID(ctx),
			attr.UserID(userID.String()),
			attr.AttemptID(attemptID.String()),
			attr.Any("badges", newBadges),
		)
	}

	return results.SuccessResult[gamificationtypes.OutcomeResult, error](gamificationtypes.OutcomeResult{
		Stats:         statsFrom(userID, total, held),
		NewBadges:     newBadges,
		AwardedBadges: gamificationtypes.SortBadgeKinds(awarded),
	}), nil
}

// statsFrom builds the aggregate from a total and a set of held kinds.
func statsFrom(userID gamificationtypes.UserID, total int, held map[gamificationtypes.BadgeKind]struct{}) gamificationtypes.UserGameStats {
	kinds := make([]gamificationtypes.BadgeKind, 0, len(held))
	for kind := range held {
		kinds = append(kinds, kind)
	}
	return gamificationtypes.UserGameStats{
		UserID:     userID,
		TotalScore: total,
		Badges:     gamificationtypes.SortBadgeKinds(kinds),
	}
}
