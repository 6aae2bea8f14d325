package gamificationrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	gamificationservice "github.com/angelgru/gamification/app/modules/gamification/application"
	gamificationevents "github.com/angelgru/gamification/app/modules/gamification/domain/events"
	gamificationhandlers "github.com/angelgru/gamification/app/modules/gamification/infrastructure/handlers"
	"github.com/angelgru/gamification/app/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// RetryableKey is set on dead-lettered messages to tell whether a later
// replay could succeed.
const RetryableKey = "retryable"

var errMalformedPayload = errors.New("malformed payload")

// Config controls redelivery of failed messages.
type Config struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// GamificationRouter handles Watermill handler registration for gamification events.
type GamificationRouter struct {
	logger         *slog.Logger
	router         *message.Router
	subscriber     message.Subscriber
	publisher      message.Publisher
	tracer         trace.Tracer
	metricsBuilder *metrics.PrometheusMetricsBuilder
	config         Config
}

// NewGamificationRouter creates a new GamificationRouter. Router metrics are
// registered only when registry is non-nil.
func NewGamificationRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber message.Subscriber,
	publisher message.Publisher,
	tracer trace.Tracer,
	registry *prometheus.Registry,
	config Config,
) *GamificationRouter {
	var metricsBuilder *metrics.PrometheusMetricsBuilder
	if registry != nil {
		builder := metrics.NewPrometheusMetricsBuilder(registry, "", "")
		metricsBuilder = &builder
	}
	if config.InitialInterval <= 0 {
		config.InitialInterval = 100 * time.Millisecond
	}
	if config.MaxInterval <= 0 {
		config.MaxInterval = 5 * time.Second
	}

	return &GamificationRouter{
		logger:         logger,
		router:         router,
		subscriber:     subscriber,
		publisher:      publisher,
		tracer:         tracer,
		metricsBuilder: metricsBuilder,
		config:         config,
	}
}

// Configure sets up the router with handlers.
func (r *GamificationRouter) Configure(_ context.Context, handlers gamificationhandlers.Handlers) error {
	if r.metricsBuilder != nil {
		r.logger.Info("Adding Prometheus router metrics middleware for Gamification")
		r.metricsBuilder.AddPrometheusRouterMetrics(r.router)
	}

	poisonQueue, err := middleware.PoisonQueue(r.publisher, gamificationevents.AttemptSolvedFailedV1)
	if err != nil {
		return fmt.Errorf("failed to create poison queue middleware: %w", err)
	}

	deps := handlerDeps{
		router:      r.router,
		subscriber:  r.subscriber,
		publisher:   r.publisher,
		logger:      r.logger,
		tracer:      r.tracer,
		poisonQueue: poisonQueue,
		retry: middleware.Retry{
			MaxRetries:      r.config.MaxRetries,
			InitialInterval: r.config.InitialInterval,
			MaxInterval:     r.config.MaxInterval,
			Multiplier:      2,
			Logger:          watermill.NewSlogLogger(r.logger),
		},
	}

	r.logger.Info("Registering gamification module handlers",
		slog.String("attempt_solved_subject", gamificationevents.AttemptSolvedV1),
		slog.String("failed_subject", gamificationevents.AttemptSolvedFailedV1),
		slog.Int("max_retries", r.config.MaxRetries),
	)

	registerHandler(deps, gamificationevents.AttemptSolvedV1, handlers.HandleAttemptSolved)

	r.logger.Info("Gamification module handlers registered successfully")
	return nil
}

// handlerDeps bundles dependencies for handler registration.
type handlerDeps struct {
	router      *message.Router
	subscriber  message.Subscriber
	publisher   message.Publisher
	logger      *slog.Logger
	tracer      trace.Tracer
	poisonQueue message.HandlerMiddleware
	retry       middleware.Retry
}

// registerHandler is a generic function for type-safe Watermill handler registration.
//
// Middleware order, outermost first: poison queue, retryable marker, retry.
// Non-retryable failures never reach the retry middleware; they are
// dead-lettered by the wrapper and acked.
func registerHandler[T any](
	deps handlerDeps,
	topic string,
	handler func(context.Context, *T) ([]gamificationhandlers.Result, error),
) {
	handlerName := "gamification." + topic

	h := deps.router.AddNoPublisherHandler(
		handlerName,
		topic,
		deps.subscriber,
		wrapTyped(deps, handlerName, handler),
	)
	h.AddMiddleware(
		deps.poisonQueue,
		markRetryable,
		deps.retry.Middleware,
	)
}

// wrapTyped decodes the payload, runs handler and publishes its results with
// the inbound correlation ID.
func wrapTyped[T any](
	deps handlerDeps,
	handlerName string,
	handler func(context.Context, *T) ([]gamificationhandlers.Result, error),
) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		correlationID := middleware.MessageCorrelationID(msg)
		ctx := attr.WithCorrelationID(msg.Context(), correlationID)
		ctx, span := deps.tracer.Start(ctx, handlerName)
		defer span.End()

		var payload T
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return deadLetter(ctx, deps, msg, fmt.Errorf("%w: %w", errMalformedPayload, err))
		}

		results, err := handler(ctx, &payload)
		if err != nil {
			span.RecordError(err)
			if !gamificationservice.IsRetryable(err) {
				return deadLetter(ctx, deps, msg, err)
			}
			return err
		}

		// Encode everything first so a bad result publishes nothing.
		outs := make([]*message.Message, 0, len(results))
		for _, result := range results {
			out, err := newResultMessage(result, correlationID)
			if err != nil {
				return deadLetter(ctx, deps, msg, err)
			}
			outs = append(outs, out)
		}
		for i, out := range outs {
			if err := deps.publisher.Publish(results[i].Topic, out); err != nil {
				return fmt.Errorf("failed to publish %s: %w", results[i].Topic, err)
			}
		}
		return nil
	}
}

func newResultMessage(result gamificationhandlers.Result, correlationID string) (*message.Message, error) {
	payload, err := json.Marshal(result.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", result.Topic, err)
	}
	out := message.NewMessage(watermill.NewUUID(), payload)
	middleware.SetCorrelationID(correlationID, out)
	out.Metadata.Set("topic", result.Topic)
	return out, nil
}

// deadLetter publishes msg to the failed topic without retrying and acks it.
func deadLetter(ctx context.Context, deps handlerDeps, msg *message.Message, cause error) error {
	failed := msg.Copy()
	failed.Metadata.Set(middleware.ReasonForPoisonedKey, cause.Error())
	failed.Metadata.Set(middleware.PoisonedTopicKey, message.SubscribeTopicFromCtx(msg.Context()))
	failed.Metadata.Set(middleware.PoisonedHandlerKey, message.HandlerNameFromCtx(msg.Context()))
	failed.Metadata.Set(RetryableKey, strconv.FormatBool(false))

	deps.logger.WarnContext(ctx, "Rejecting message without retry",
		attr.ExtractCorrelationID(ctx),
		attr.String("message_uuid", msg.UUID),
		attr.Error(cause),
	)

	if err := deps.publisher.Publish(gamificationevents.AttemptSolvedFailedV1, failed); err != nil {
		return fmt.Errorf("failed to dead-letter message %s: %w", msg.UUID, err)
	}
	return nil
}

// markRetryable tags messages that exhausted their retries before the poison
// queue takes them.
func markRetryable(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		produced, err := h(msg)
		if err != nil {
			msg.Metadata.Set(RetryableKey, strconv.FormatBool(true))
		}
		return produced, err
	}
}

// Close shuts down the router.
func (r *GamificationRouter) Close() error {
	return r.router.Close()
}
