package cmd

import (
	"context"

	"go.uber.org/zap"

	feat "entrevia/internal/features"
	rabbitmq "entrevia/pkg/rabbit/pkg"
)

// startWorker drains the purchase queue, crediting users as Kiwify events
// arrive. With no broker configured Consume returns immediately and the
// webhook handler applies credits inline instead.
func startWorker(ctx context.Context, logger *zap.Logger, broker rabbitmq.Rabbit, processor *feat.CreditProcessor) {
	if err := broker.Consume(ctx, processor.HandleDelivery); err != nil {
		logger.Error("Credit consumer stopped", zap.Error(err))
	}
}
