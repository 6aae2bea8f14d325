package gamificationservice

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	gamificationdb "github.com/angelgru/gamification/app/modules/gamification/infrastructure/repositories"
	"github.com/angelgru/gamification/app/observability/attr"
	gamificationmetrics "github.com/angelgru/gamification/app/observability/metrics/gamification"
	"github.com/angelgru/gamification/app/results"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "GamificationService"

// GamificationService implements the Service interface.
type GamificationService struct {
	repo    gamificationdb.Repository
	lookup  AttemptLookup
	rules   RuleConfig
	logger  *slog.Logger
	metrics gamificationmetrics.GamificationMetrics
	tracer  trace.Tracer
	db      *bun.DB
}

// NewGamificationService creates a new GamificationService. A nil db runs
// every ledger call on the repository's own handle.
func NewGamificationService(
	repo gamificationdb.Repository,
	lookup AttemptLookup,
	rules RuleConfig,
	logger *slog.Logger,
	metrics gamificationmetrics.GamificationMetrics,
	tracer trace.Tracer,
	db *bun.DB,
) *GamificationService {
	if logger == nil {
		logger = slog.Default()
	}
	if rules == (RuleConfig{}) {
		rules = DefaultRuleConfig()
	}
	return &GamificationService{
		repo:    repo,
		lookup:  lookup,
		rules:   rules,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		db:      db,
	}
}

var _ Service = (*GamificationService)(nil)

// unwrap converts an operation result into the (value, error) pair callers see.
func unwrap[S any](result results.OperationResult[S, error], err error) (S, error) {
	var zero S
	if err != nil {
		return zero, err
	}
	if result.IsFailure() {
		return zero, *result.Failure
	}
	if result.Success == nil {
		return zero, fmt.Errorf("%s: operation produced no result", serviceName)
	}
	return *result.Success, nil
}

// -----------------------------------------------------------------------------
// Generic Helpers (Defined as functions because methods cannot have type params)
// -----------------------------------------------------------------------------

// operationFunc is the generic signature for service operation functions.
type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *GamificationService,
	ctx context.Context,
	operationName string,
	identifier string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {

	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("identifier", identifier),
		))
	} else {
		span = trace.SpanFromContext(ctx)
	}
	defer span.End()

	if s.metrics != nil {
		s.metrics.RecordOperationAttempt(ctx, operationName, serviceName)
	}

	startTime := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperationDuration(ctx, operationName, serviceName, time.Since(startTime))
		}
	}()

	s.logger.DebugContext(ctx, "Operation triggered", attr.ExtractCorrelationID(ctx), attr.String("operation", operationName))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.String("identifier", identifier),
				attr.Error(err),
			)
			if s.metrics != nil {
				s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
			}
			span.RecordError(err)
			result = results.OperationResult[S, F]{}
		}
	}()

	result, err = op(ctx)

	// Infrastructure error
	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Error(wrappedErr),
		)
		if s.metrics != nil {
			s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
		}
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	// Domain failure
	if result.IsFailure() {
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Any("failure_payload", *result.Failure),
		)
		if s.metrics != nil {
			s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
		}
		return result, nil
	}

	s.logger.DebugContext(ctx, "Operation completed successfully",
		attr.ExtractCorrelationID(ctx),
		attr.String("operation", operationName),
		attr.String("identifier", identifier),
	)

	if s.metrics != nil {
		s.metrics.RecordOperationSuccess(ctx, operationName, serviceName)
	}

	return result, nil
}

// runInTx runs fn inside a transaction when a database is configured.
func runInTx[S any, F any](
	s *GamificationService,
	ctx context.Context,
	opts *sql.TxOptions,
	fn func(ctx context.Context, db bun.IDB) (results.OperationResult[S, F], error),
) (results.OperationResult[S, F], error) {

	if s.db == nil {
		return fn(ctx, nil)
	}

	var result results.OperationResult[S, F]

	err := s.db.RunInTx(ctx, opts, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		result, txErr = fn(ctx, tx)
		return txErr
	})

	return result, err
}
