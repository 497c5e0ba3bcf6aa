package filtering

import (
	"context"
	"time"

	"sieve/internal/broker"
	"sieve/internal/logger"
	"sieve/pkg/models"
	"sieve/pkg/retry"
)

// NewStreamHandler returns the input topic handler: envelopes that pass every
// active stream filter are stamped with filters_applied and published to
// outputTopic, the rest are dropped. Errors are returned to the consumer,
// which retries or dead-letters them. Malformed envelopes are never retried.
func NewStreamHandler(svc *Service, producer broker.Producer, outputTopic string, log logger.Logger) broker.HandlerFunc {
	return func(ctx context.Context, msg models.MessageEnvelope) error {
		if err := models.ValidateMessageEnvelope(&msg); err != nil {
			log.WarnwCtx(ctx, "Invalid envelope", "error", err)
			return retry.NewFatalError(err)
		}

		decision, err := svc.Filter(ctx, msg)
		if err != nil {
			return err
		}

		if !decision.Passed {
			log.DebugwCtx(ctx, "Message filtered out")
			return nil
		}

		msg.Metadata.FiltersApplied = &models.FiltersApplied{
			PassedAt:  time.Now().UTC(),
			FilterIDs: decision.FilterIDs,
			Fallback:  decision.Fallback,
		}

		if err := producer.Publish(ctx, outputTopic, msg); err != nil {
			log.ErrorwCtx(ctx, "Failed to publish message",
				"error", err,
				"output_topic", outputTopic,
			)
			return err
		}

		log.DebugwCtx(ctx, "Message passed filtering",
			"filters_applied", len(decision.FilterIDs),
		)
		return nil
	}
}
