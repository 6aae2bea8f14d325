package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventBus is the Watermill publisher/subscriber pair plus the raw NATS
// connection used for request-reply.
type EventBus interface {
	message.Publisher
	message.Subscriber

	// Conn returns the underlying NATS connection.
	Conn() *nc.Conn

	// CreateStream makes sure a JetStream stream covers subjects. It is a
	// no-op when JetStream is disabled.
	CreateStream(ctx context.Context, streamName string, subjects ...string) error
}

// Config configures the NATS connection.
type Config struct {
	URL        string
	JetStream  bool
	QueueGroup string
}

// eventBus implements the EventBus interface.
type eventBus struct {
	publisher      message.Publisher
	subscriber     message.Subscriber
	js             jetstream.JetStream
	natsConn       *nc.Conn
	logger         *slog.Logger
	createdStreams map[string]bool
	streamMutex    sync.Mutex
	closeOnce      sync.Once
}

// NewEventBus connects to NATS and creates the Watermill publisher and subscriber.
func NewEventBus(ctx context.Context, cfg Config, logger *slog.Logger) (EventBus, error) {
	natsConn, err := nc.Connect(cfg.URL,
		nc.Name("gamification"),
		nc.RetryOnFailedConnect(true),
		nc.MaxReconnects(-1),
	)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to connect to NATS", slog.Any("error", err))
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	var js jetstream.JetStream
	if cfg.JetStream {
		js, err = jetstream.New(natsConn)
		if err != nil {
			natsConn.Close()
			logger.ErrorContext(ctx, "Failed to initialize JetStream", slog.Any("error", err))
			return nil, fmt.Errorf("failed to initialize JetStream: %w", err)
		}
	}

	watermillLogger := watermill.NewSlogLogger(logger)
	marshaler := &nats.NATSMarshaler{}
	jsConfig := nats.JetStreamConfig{
		Disabled:      !cfg.JetStream,
		AutoProvision: false,
		TrackMsgId:    true,
		DurablePrefix: cfg.QueueGroup,
		SubscribeOptions: []nc.SubOpt{
			nc.DeliverAll(),
			nc.AckExplicit(),
		},
	}

	publisher, err := nats.NewPublisher(
		nats.PublisherConfig{
			URL:       cfg.URL,
			Marshaler: marshaler,
			NatsOptions: []nc.Option{
				nc.RetryOnFailedConnect(true),
			},
			JetStream: jsConfig,
		},
		watermillLogger,
	)
	if err != nil {
		natsConn.Close()
		logger.ErrorContext(ctx, "Failed to create Watermill publisher", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create Watermill publisher: %w", err)
	}

	subscriber, err := nats.NewSubscriber(
		nats.SubscriberConfig{
			URL:               cfg.URL,
			QueueGroupPrefix:  cfg.QueueGroup,
			SubscribersCount:  1,
			SubjectCalculator: nats.DefaultSubjectCalculator,
			CloseTimeout:      30 * time.Second,
			AckWaitTimeout:    30 * time.Second,
			Unmarshaler:       marshaler,
			NatsOptions: []nc.Option{
				nc.RetryOnFailedConnect(true),
			},
			JetStream: jsConfig,
		},
		watermillLogger,
	)
	if err != nil {
		natsConn.Close()
		publisher.Close()
		logger.ErrorContext(ctx, "Failed to create Watermill subscriber", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create Watermill subscriber: %w", err)
	}

	return &eventBus{
		publisher:      publisher,
		subscriber:     subscriber,
		js:             js,
		natsConn:       natsConn,
		logger:         logger,
		createdStreams: make(map[string]bool),
	}, nil
}

func (eb *eventBus) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		if msg.UUID == "" {
			msg.UUID = watermill.NewUUID()
		}
	}
	eb.logger.Debug("Publishing messages", slog.String("topic", topic), slog.Int("count", len(messages)))

	if err := eb.publisher.Publish(topic, messages...); err != nil {
		eb.logger.Error("Failed to publish messages", slog.String("topic", topic), slog.Any("error", err))
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (eb *eventBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	eb.logger.InfoContext(ctx, "Subscribing to subject", slog.String("subject", topic))

	messages, err := eb.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to subject %s: %w", topic, err)
	}
	return messages, nil
}

func (eb *eventBus) Conn() *nc.Conn {
	return eb.natsConn
}

func (eb *eventBus) CreateStream(ctx context.Context, streamName string, subjects ...string) error {
	if eb.js == nil {
		return nil
	}

	eb.streamMutex.Lock()
	defer eb.streamMutex.Unlock()

	if eb.createdStreams[streamName] {
		return nil
	}

	stream, err := eb.js.Stream(ctx, streamName)
	switch {
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := eb.js.CreateStream(ctx, jetstream.StreamConfig{
			Name:     streamName,
			Subjects: subjects,
		}); err != nil {
			return fmt.Errorf("failed to create stream %s: %w", streamName, err)
		}
		eb.logger.InfoContext(ctx, "Stream created", "stream_name", streamName, "subjects", subjects)
	case err != nil:
		return fmt.Errorf("failed to check if stream exists: %w", err)
	default:
		info, err := stream.Info(ctx)
		if err != nil {
			return fmt.Errorf("failed to get stream info: %w", err)
		}
		missing := missingSubjects(info.Config.Subjects, subjects)
		if len(missing) > 0 {
			info.Config.Subjects = append(info.Config.Subjects, missing...)
			if _, err := eb.js.UpdateStream(ctx, info.Config); err != nil {
				return fmt.Errorf("failed to update stream with new subjects: %w", err)
			}
			eb.logger.InfoContext(ctx, "Stream updated with new subjects", "stream_name", streamName, "subjects", missing)
		}
	}

	eb.createdStreams[streamName] = true
	return nil
}

// missingSubjects returns the entries of wanted not present in existing.
func missingSubjects(existing, wanted []string) []string {
	have := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		have[s] = struct{}{}
	}
	var missing []string
	for _, s := range wanted {
		if _, ok := have[s]; !ok {
			missing = append(missing, s)
			have[s] = struct{}{}
		}
	}
	return missing
}

// Close closes all NATS and Watermill resources.
func (eb *eventBus) Close() error {
	var errs []error
	eb.closeOnce.Do(func() {
		if eb.publisher != nil {
			if err := eb.publisher.Close(); err != nil {
				eb.logger.Error("Error closing NATS publisher", "error", err)
				errs = append(errs, err)
			}
		}
		if eb.subscriber != nil {
			if err := eb.subscriber.Close(); err != nil {
				eb.logger.Error("Error closing NATS subscriber", "error", err)
				errs = append(errs, err)
			}
		}
		if eb.natsConn != nil {
			eb.natsConn.Close()
		}
	})
	return errors.Join(errs...)
}
