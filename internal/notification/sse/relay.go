package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"orengen_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RelayChannel is the Redis Pub/Sub channel live updates cross processes on.
const RelayChannel = "stl:sse"

const relayPublishTimeout = 2 * time.Second

// Publisher delivers live updates to users.
type Publisher interface {
	Publish(userID uuid.UUID, event Event) int
	PublishToTenant(tenantID uuid.UUID, event Event) int
}

// envelope addresses an event to a user, or to a whole tenant when UserID is nil.
type envelope struct {
	UserID   uuid.UUID `json:"userId"`
	TenantID uuid.UUID `json:"tenantId"`
	Event    Event     `json:"event"`
}

// Relay forwards live updates raised in processes without SSE connections,
// such as the scheduler, to every API process over Redis.
type Relay struct {
	client  *redis.Client
	channel string
	log     *logger.Logger
}

func NewRelay(client *redis.Client, log *logger.Logger) *Relay {
	return &Relay{client: client, channel: RelayChannel, log: log}
}

// Publish forwards an event for one user and returns how many subscribed
// processes received it.
func (r *Relay) Publish(userID uuid.UUID, event Event) int {
	return r.send(envelope{UserID: userID, Event: event})
}

// PublishToTenant forwards an event for every connected user of a tenant.
func (r *Relay) PublishToTenant(tenantID uuid.UUID, event Event) int {
	return r.send(envelope{TenantID: tenantID, Event: event})
}

func (r *Relay) send(env envelope) int {
	payload, err := json.Marshal(env)
	if err != nil {
		r.log.Error("failed to encode relayed sse event", "event", env.Event.Type, "error", err)
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), relayPublishTimeout)
	defer cancel()
	receivers, err := r.client.Publish(ctx, r.channel, payload).Result()
	if err != nil {
		r.log.Warn("failed to relay sse event", "event", env.Event.Type, "error", err)
		return 0
	}
	return int(receivers)
}

// Run subscribes to the relay channel and hands every event to local until
// ctx is done.
func (r *Relay) Run(ctx context.Context, local Publisher) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.log.Info("sse relay subscribed", "channel", r.channel)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.deliver(local, msg.Payload)
		}
	}
}

func (r *Relay) deliver(local Publisher, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.log.Warn("dropping malformed relayed sse event", "error", err)
		return
	}
	switch {
	case env.UserID != uuid.Nil:
		local.Publish(env.UserID, env.Event)
	case env.TenantID != uuid.Nil:
		local.PublishToTenant(env.TenantID, env.Event)
	default:
		r.log.Warn("dropping relayed sse event without recipient", "event", env.Event.Type)
	}
}
