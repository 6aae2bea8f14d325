package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gamificationservice "github.com/angelgru/gamification/app/modules/gamification/application"
	gamificationtypes "github.com/angelgru/gamification/app/modules/gamification/domain/types"
)

type attemptResultResponse struct {
	MultiplicationFactorA int `json:"multiplicationFactorA"`
	MultiplicationFactorB int `json:"multiplicationFactorB"`
}

// HTTPAttemptLookup resolves attempt operands from the quiz service's REST API.
type HTTPAttemptLookup struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPAttemptLookup creates a lookup against baseURL. The timeout bounds
// each lookup regardless of the client's own settings; zero disables it.
func NewHTTPAttemptLookup(baseURL string, client *http.Client, timeout time.Duration) *HTTPAttemptLookup {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPAttemptLookup{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		timeout: timeout,
	}
}

var _ gamificationservice.AttemptLookup = (*HTTPAttemptLookup)(nil)

func (l *HTTPAttemptLookup) LookupAttempt(ctx context.Context, attemptID gamificationtypes.AttemptID) (gamificationtypes.AttemptOperands, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	endpoint := l.baseURL + "/results/" + url.PathEscape(attemptID.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return gamificationtypes.AttemptOperands{}, fmt.Errorf("build lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return gamificationtypes.AttemptOperands{}, fmt.Errorf("lookup request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return gamificationtypes.AttemptOperands{}, gamificationservice.ErrAttemptNotFound
	case resp.StatusCode != http.StatusOK:
		return gamificationtypes.AttemptOperands{}, fmt.Errorf("lookup returned %s", resp.Status)
	}

	var body attemptResultResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return gamificationtypes.AttemptOperands{}, fmt.Errorf("decode lookup response: %w", err)
	}
	return gamificationtypes.AttemptOperands{
		AttemptID: attemptID,
		OperandA:  body.MultiplicationFactorA,
		OperandB:  body.MultiplicationFactorB,
	}, nil
}
