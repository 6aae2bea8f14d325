package adapters_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	gamificationservice "github.com/angelgru/gamification/app/modules/gamification/application"
	"github.com/angelgru/gamification/app/modules/gamification/infrastructure/adapters"
	"github.com/angelgru/gamification/integration_tests/containers"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNATSAttemptLookup_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping NATS integration test in short mode")
	}

	ctx := context.Background()
	container, url, err := containers.SetupNatsContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	conn, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	sub, err := conn.Subscribe("quiz.attempt.lookup", func(msg *nats.Msg) {
		var req struct {
			AttemptID string `json:"attempt_id"`
		}
		_ = json.Unmarshal(msg.Data, &req)

		reply := map[string]any{"attempt_id": req.AttemptID, "operand_a": 44, "operand_b": 12}
		if req.AttemptID == "missing" {
			reply = map[string]any{"error": "not_found"}
		}
		data, _ := json.Marshal(reply)
		_ = msg.Respond(data)
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })
	require.NoError(t, conn.Flush())

	lookup := adapters.NewNATSAttemptLookup(conn, "quiz.attempt.lookup", 2*time.Second)

	operands, err := lookup.LookupAttempt(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 44, operands.OperandA)
	assert.Equal(t, 12, operands.OperandB)

	_, err = lookup.LookupAttempt(ctx, "missing")
	assert.ErrorIs(t, err, gamificationservice.ErrAttemptNotFound)

	unanswered := adapters.NewNATSAttemptLookup(conn, "quiz.nobody.listens", 200*time.Millisecond)
	_, err = unanswered.LookupAttempt(ctx, "a1")
	require.Error(t, err)
	assert.True(t, gamificationservice.IsRetryable(err))
}
