package gamificationhandlers

import (
	"context"
	"net/http"

	gamificationevents "github.com/angelgru/gamification/app/modules/gamification/domain/events"
)

// Result is one outbound message produced by a handler.
type Result struct {
	Topic   string
	Payload any
}

// Handlers defines the interface for gamification event and query handlers.
type Handlers interface {
	// HandleAttemptSolved records an attempt outcome and reports the new aggregate.
	HandleAttemptSolved(ctx context.Context, payload *gamificationevents.AttemptSolvedPayloadV1) ([]Result, error)

	HandleHTTPLeaders(w http.ResponseWriter, r *http.Request)
	HandleHTTPStats(w http.ResponseWriter, r *http.Request)
	HandleHTTPHealth(w http.ResponseWriter, r *http.Request)
}
