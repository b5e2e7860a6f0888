package service

import (
	"context"
	"encoding/json"

	"property-insight-be/internal/dto"
	"property-insight-be/internal/entity"
	"property-insight-be/internal/pkg/logger"
	"property-insight-be/internal/repository/contract"

	"github.com/ThreeDotsLabs/watermill/message"
)

// ICooldownReleaseConsumer follows snapshot observations and ends a trigger
// cooldown once the re-run it started has finished.
type ICooldownReleaseConsumer interface {
	Consume(ctx context.Context) error
}

type cooldownReleaseConsumer struct {
	subscriber message.Subscriber
	topicName  string
	cooldowns  contract.CooldownStore
	logger     logger.ILogger
}

func NewCooldownReleaseConsumer(
	subscriber message.Subscriber,
	topicName string,
	cooldowns contract.CooldownStore,
	logger logger.ILogger,
) ICooldownReleaseConsumer {
	return &cooldownReleaseConsumer{
		subscriber: subscriber,
		topicName:  topicName,
		cooldowns:  cooldowns,
		logger:     logger,
	}
}

func (c *cooldownReleaseConsumer) Consume(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, c.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			c.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage always acks: observations repeat on every poll, so a
// dropped one is superseded by the next.
func (c *cooldownReleaseConsumer) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var payload dto.SessionSnapshotObservedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.logger.Error("COOLDOWN", "Failed to unmarshal snapshot observation", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := c.Observe(ctx, payload); err != nil {
		c.logger.Warn("COOLDOWN", "Failed to apply snapshot observation", map[string]interface{}{
			"session_id": payload.SessionId,
			"error":      err.Error(),
		})
	}
}

// Observe advances the marker: armed -> running on a non-terminal status,
// running -> released on a terminal one. A terminal status seen while still
// armed belongs to the previous run and is ignored.
func (c *cooldownReleaseConsumer) Observe(ctx context.Context, obs dto.SessionSnapshotObservedMessage) error {
	marker, err := c.cooldowns.Get(ctx, obs.SessionId)
	if err != nil || marker == nil {
		return err
	}

	if !obs.Status.IsTerminal() {
		moved, err := c.cooldowns.MarkRunning(ctx, obs.SessionId)
		if err != nil {
			return err
		}
		if moved {
			c.logger.Debug("COOLDOWN", "Re-analysis observed running", map[string]interface{}{
				"session_id": obs.SessionId,
				"status":     string(obs.Status),
			})
		}
		return nil
	}

	if marker.Phase != entity.CooldownRunning {
		return nil
	}
	if err := c.cooldowns.Release(ctx, obs.SessionId); err != nil {
		return err
	}
	c.logger.Info("COOLDOWN", "Re-analysis finished, cooldown released", map[string]interface{}{
		"session_id": obs.SessionId,
		"status":     string(obs.Status),
		"held_for":   obs.ObservedAt.Sub(marker.ArmedAt).String(),
	})
	return nil
}
