package gamificationevents

import (
	gamificationtypes "github.com/angelgru/gamification/app/modules/gamification/domain/types"
)

// Topics consumed and produced by the gamification module.
const (
	// AttemptSolvedV1 is published by the quiz service once an attempt has been judged.
	AttemptSolvedV1 = "gamification.attempt.solved.v1"

	// AttemptSolvedFailedV1 receives messages that could not be processed.
	AttemptSolvedFailedV1 = "gamification.attempt.solved.failed.v1"

	// StatsUpdatedV1 carries the user's aggregate after every correct attempt.
	StatsUpdatedV1 = "gamification.stats.updated.v1"

	// BadgesAwardedV1 is published when an attempt earned at least one new badge.
	BadgesAwardedV1 = "gamification.badges.awarded.v1"
)

// AttemptSolvedPayloadV1 is the inbound outcome notification.
type AttemptSolvedPayloadV1 struct {
	UserID    gamificationtypes.UserID    `json:"user_id"`
	AttemptID gamificationtypes.AttemptID `json:"attempt_id"`
	Correct   bool                        `json:"correct"`
}

// StatsUpdatedPayloadV1 reports a user's aggregate after an outcome was recorded.
type StatsUpdatedPayloadV1 struct {
	UserID     gamificationtypes.UserID      `json:"user_id"`
	AttemptID  gamificationtypes.AttemptID   `json:"attempt_id"`
	TotalScore int                           `json:"total_score"`
	Badges     []gamificationtypes.BadgeKind `json:"badges"`
}

// BadgesAwardedPayloadV1 lists the badges newly granted by one attempt.
type BadgesAwardedPayloadV1 struct {
	UserID    gamificationtypes.UserID      `json:"user_id"`
	AttemptID gamificationtypes.AttemptID   `json:"attempt_id"`
	Badges    []gamificationtypes.BadgeKind `json:"badges"`
}
