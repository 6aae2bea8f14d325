package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gamificationservice "github.com/angelgru/gamification/app/modules/gamification/application"
	gamificationtypes "github.com/angelgru/gamification/app/modules/gamification/domain/types"
	"github.com/nats-io/nats.go"
)

const lookupErrNotFound = "not_found"

// Requester is the part of *nats.Conn used for request-reply.
type Requester interface {
	RequestWithContext(ctx context.Context, subject string, data []byte) (*nats.Msg, error)
}

type attemptLookupRequest struct {
	AttemptID gamificationtypes.AttemptID `json:"attempt_id"`
}

type attemptLookupReply struct {
	AttemptID gamificationtypes.AttemptID `json:"attempt_id"`
	OperandA  int                         `json:"operand_a"`
	OperandB  int                         `json:"operand_b"`
	Error     string                      `json:"error,omitempty"`
}

// NATSAttemptLookup resolves attempt operands by request-reply on a NATS subject.
type NATSAttemptLookup struct {
	conn    Requester
	subject string
	timeout time.Duration
}

func NewNATSAttemptLookup(conn Requester, subject string, timeout time.Duration) *NATSAttemptLookup {
	return &NATSAttemptLookup{conn: conn, subject: subject, timeout: timeout}
}

var _ gamificationservice.AttemptLookup = (*NATSAttemptLookup)(nil)

func (l *NATSAttemptLookup) LookupAttempt(ctx context.Context, attemptID gamificationtypes.AttemptID) (gamificationtypes.AttemptOperands, error) {
	payload, err := json.Marshal(attemptLookupRequest{AttemptID: attemptID})
	if err != nil {
		return gamificationtypes.AttemptOperands{}, fmt.Errorf("failed to marshal lookup request: %w", err)
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	msg, err := l.conn.RequestWithContext(ctx, l.subject, payload)
	if err != nil {
		return gamificationtypes.AttemptOperands{}, fmt.Errorf("failed to request on subject %s: %w", l.subject, err)
	}

	var reply attemptLookupReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return gamificationtypes.AttemptOperands{}, fmt.Errorf("failed to decode lookup reply: %w", err)
	}

	switch reply.Error {
	case "":
	case lookupErrNotFound:
		return gamificationtypes.AttemptOperands{}, gamificationservice.ErrAttemptNotFound
	default:
		return gamificationtypes.AttemptOperands{}, fmt.Errorf("lookup replied with error %q", reply.Error)
	}

	return gamificationtypes.AttemptOperands{
		AttemptID: attemptID,
		OperandA:  reply.OperandA,
		OperandB:  reply.OperandB,
	}, nil
}
