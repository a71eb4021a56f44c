// Package events fans job status transitions out over redis pub/sub so
// external consumers (dashboards, webhooks) can follow job progress without
// polling the store.
package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/agentrun-io/agentrun/internal/core"
)

// JobEventChannel is the pub/sub channel job transitions are published on.
const JobEventChannel = "agentrun:jobs:events"

// RedisPublisher implements core.EventPublisher over redis pub/sub.
// Publishing is best-effort: a failed publish is logged and dropped, never
// surfaced to the pipeline.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

var _ core.EventPublisher = (*RedisPublisher)(nil)

// RedisPublisherOptions configures a RedisPublisher.
type RedisPublisherOptions struct {
	Client redis.UniversalClient
	// Channel overrides JobEventChannel when non-empty.
	Channel string
	Logger  *slog.Logger
}

// NewRedisPublisher creates a publisher over the given client.
func NewRedisPublisher(opts RedisPublisherOptions) *RedisPublisher {
	channel := opts.Channel
	if channel == "" {
		channel = JobEventChannel
	}
	return &RedisPublisher{client: opts.Client, channel: channel, logger: opts.Logger}
}

// PublishJobEvent serializes the event and publishes it.
func (p *RedisPublisher) PublishJobEvent(ctx context.Context, ev core.JobEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		if p.logger != nil {
			p.logger.Error("encode job event failed", "job_id", ev.JobID, "error", err)
		}
		return
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil && p.logger != nil {
		p.logger.Warn("publish job event failed", "job_id", ev.JobID, "error", err)
	}
}

// NopPublisher discards all events. Used when redis is not configured.
type NopPublisher struct{}

var _ core.EventPublisher = NopPublisher{}

// PublishJobEvent drops the event.
func (NopPublisher) PublishJobEvent(context.Context, core.JobEvent) {}
