package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fitgrid-app/backend-chat/internal/dto"
	"github.com/fitgrid-app/backend-chat/internal/provider"
	"github.com/fitgrid-app/backend-chat/internal/service"
	"github.com/fitgrid-app/backend-chat/pkg/config"
	"github.com/fitgrid-app/backend-chat/pkg/logger"
	"github.com/fitgrid-app/backend-chat/pkg/telemetry"
)

// Provider event types consumed from the firehose topic
const (
	TypeMessageNew   = "message.new"
	TypeEventCreated = "event.created"
	TypeEventClosed  = "event.closed"
)

// Consumer reads the provider firehose topic and applies side effects to the
// room store: auto-unhide on inbound messages and event room lifecycle.
// Handlers are idempotent, so at-least-once delivery is fine and offsets
// commit after processing.
type Consumer struct {
	client    *kgo.Client
	rooms     service.RoomService
	log       *logger.Logger
	processed *telemetry.Counter
}

// NewConsumer creates a consumer in the service's consumer group
func NewConsumer(cfg *config.KafkaConfig, rooms service.RoomService, log *logger.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.ConsumeTopics(cfg.EventsTopic),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	processed, err := telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "chat_provider_events_total",
		Description: "Provider firehose events processed by type and result",
		Unit:        "{event}",
	})
	if err != nil {
		processed = nil
	}

	return &Consumer{client: client, rooms: rooms, log: log, processed: processed}, nil
}

// Run polls until the context is cancelled
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("provider event consumer started")
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.log.Error("fetch error",
				zap.String("topic", topic),
				zap.Int32("partition", partition),
				zap.Error(err))
		})

		fetches.EachRecord(func(record *kgo.Record) {
			c.handleRecord(ctx, record.Value)
		})

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.log.Error("offset commit failed", zap.Error(err))
		}
	}
}

// Close shuts the Kafka client down
func (c *Consumer) Close() {
	c.client.Close()
}

func (c *Consumer) handleRecord(ctx context.Context, value []byte) {
	var event dto.ProviderEvent
	if err := json.Unmarshal(value, &event); err != nil {
		c.log.Warn("skipping undecodable provider event", zap.Error(err))
		c.count(ctx, "unknown", "skipped")
		return
	}

	err := c.Dispatch(ctx, &event)
	switch {
	case err == nil:
		c.count(ctx, event.Type, "ok")
	case errors.Is(err, provider.ErrUnavailable):
		// Provider-side trouble is retryable; the idempotent handlers make
		// redelivery safe
		c.log.Warn("provider unavailable while handling event, will retry",
			zap.String("type", event.Type),
			zap.String("channel_id", event.ChannelID))
		c.count(ctx, event.Type, "retry")
	default:
		c.log.Error("provider event handling failed",
			zap.String("type", event.Type),
			zap.String("channel_id", event.ChannelID),
			zap.Error(err))
		c.count(ctx, event.Type, "error")
	}
}

// Dispatch applies one provider event to the room store
func (c *Consumer) Dispatch(ctx context.Context, event *dto.ProviderEvent) error {
	switch event.Type {
	case TypeMessageNew:
		if event.ChannelID == "" {
			return fmt.Errorf("message.new without channel_id")
		}
		// Channels without a local room unhide nothing and are not an error
		count, err := c.rooms.UnhideOnNewMessage(ctx, event.ChannelID, event.SenderID)
		if err != nil {
			return err
		}
		if count > 0 {
			c.log.Info("room re-surfaced on new message",
				zap.String("channel_id", event.ChannelID),
				zap.Int("unhidden", count))
		}
		return nil

	case TypeEventCreated:
		if event.TenantID == "" || event.EventRef == "" {
			return fmt.Errorf("event.created without tenant_id or event_ref")
		}
		_, err := c.rooms.CreateEventRoom(ctx, event.TenantID, event.EventRef, event.EventName, event.CreatorID)
		return err

	case TypeEventClosed:
		if event.TenantID == "" || event.EventRef == "" {
			return fmt.Errorf("event.closed without tenant_id or event_ref")
		}
		err := c.rooms.CloseEventRoom(ctx, event.TenantID, event.EventRef)
		if errors.Is(err, service.ErrRoomNotFound) {
			return nil
		}
		return err

	default:
		c.log.Debug("ignoring provider event", zap.String("type", event.Type))
		return nil
	}
}

func (c *Consumer) count(ctx context.Context, eventType, result string) {
	if c.processed == nil {
		return
	}
	c.processed.Inc(ctx,
		attribute.String("type", eventType),
		attribute.String("result", result))
}
