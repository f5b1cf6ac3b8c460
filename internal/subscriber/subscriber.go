// Package subscriber relays announcements published on Redis into chat rooms.
package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Announcer delivers an announcement as a system message.
type Announcer interface {
	Announce(room, message string) error
}

type Subscriber struct {
	logger    *slog.Logger
	client    *redis.Client
	topic     string
	announcer Announcer
}

func NewSubscriber(logger *slog.Logger, client *redis.Client, topic string, announcer Announcer) *Subscriber {
	return &Subscriber{
		logger:    logger,
		client:    client,
		topic:     topic,
		announcer: announcer,
	}
}

func (s *Subscriber) Start(ctx context.Context) error {
	s.logger.Info("Redis subscriber is running", "topic", s.topic)
	pubsub := s.client.Subscribe(ctx, s.topic)
	defer func() {
		if err := pubsub.Close(); err != nil {
			s.logger.Warn("failed to close pubsub", "error", err)
		}
	}()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %q: %w", s.topic, err)
	}
	msgCh := pubsub.Channel()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				s.logger.Warn("pubsub channel closed by Redis")
				return nil
			}
			if err := s.handleMessage(msg); err != nil {
				s.logger.Error("error handling message", "error", err)
			}
		case <-ctx.Done():
			s.logger.Info("shutting down Redis subscriber")
			return nil
		}
	}
}

func (s *Subscriber) handleMessage(msg *redis.Message) error {
	s.logger.Debug("received message", "payload", msg.Payload)

	var a Announcement
	if err := json.Unmarshal([]byte(msg.Payload), &a); err != nil {
		return fmt.Errorf("unmarshalling announcement: %w", err)
	}
	if err := a.Validate(); err != nil {
		return err
	}
	if err := s.announcer.Announce(a.Room, a.Message); err != nil {
		return fmt.Errorf("announcing to room %q: %w", a.Room, err)
	}
	return nil
}
