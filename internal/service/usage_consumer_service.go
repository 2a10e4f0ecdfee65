package service

import (
	"context"
	"encoding/json"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/events"
	"ai-tutor-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IUsageConsumerService interface {
	Consume(ctx context.Context) error
}

// usageConsumerService drains turn-completed messages from the in-process
// bus and republishes them to NATS for the metering pipeline.
type usageConsumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	publisher *nats.Publisher
	log       logger.ILogger
}

func NewUsageConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	publisher *nats.Publisher,
	log logger.ILogger,
) IUsageConsumerService {
	return &usageConsumerService{
		pubSub:    pubSub,
		topicName: topicName,
		publisher: publisher,
		log:       log,
	}
}

func (cs *usageConsumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *usageConsumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.TurnCompletedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.log.Error("usage", "failed to unmarshal turn-completed message", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	if cs.publisher == nil {
		// NATS never came up; metering is best effort
		msg.Ack()
		return
	}

	event := events.NewTurnCompleted(map[string]interface{}{
		"user_id":           payload.UserId.String(),
		"session_id":        payload.SessionId.String(),
		"subject":           payload.Subject,
		"level":             payload.Level,
		"prompt_tokens":     payload.PromptTokens,
		"completion_tokens": payload.CompletionTokens,
		"total_tokens":      payload.TotalTokens,
		"used_retrieval":    payload.UsedRetrieval,
		"finish_reason":     payload.FinishReason,
		"completed_at":      payload.CompletedAt,
	})

	if err := cs.publisher.Publish(ctx, event); err != nil {
		cs.log.Error("usage", "failed to republish turn-completed event", map[string]interface{}{
			"sessionId": payload.SessionId.String(),
			"error":     err.Error(),
		})
		msg.Nack() // Retriable: NATS may be briefly unavailable
		return
	}

	cs.log.Info("usage", "turn metered", map[string]interface{}{
		"sessionId":   payload.SessionId.String(),
		"totalTokens": payload.TotalTokens,
	})
	msg.Ack()
}
