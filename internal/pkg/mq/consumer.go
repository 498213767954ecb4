// internal/pkg/mq/consumer.go
package mq

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ordersystem/internal/pkg/logger"
)

// HandlerFunc 处理一条 kafka 消息，返回 error 表示处理失败（交给 FailureHandler）。
type HandlerFunc func(ctx context.Context, msg kafka.Message) error

// Consumer 是一个通用的驱动适配器：拉取消息 -> 恢复链路 -> 调用业务 -> 提交 offset。
type Consumer struct {
	name           string
	reader         MessageReader
	handler        HandlerFunc
	failureHandler *FailureHandler
	tracer         trace.Tracer
	retryBackoff   time.Duration
}

// NewConsumer 创建消费者。failureHandler 可以为 nil，此时失败消息只记录日志。
func NewConsumer(name string, reader MessageReader, handler HandlerFunc, failureHandler *FailureHandler) *Consumer {
	return &Consumer{
		name:           name,
		reader:         reader,
		handler:        handler,
		failureHandler: failureHandler,
		tracer:         otel.Tracer(name),
		retryBackoff:   time.Second,
	}
}

// Run 阻塞消费直到 ctx 被取消，ctx 取消时返回 nil。
func (c *Consumer) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Str("consumer", c.name).Msg("✅ Kafka consumer started.")
	defer func() {
		if err := c.reader.Close(); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("consumer", c.name).Msg("failed to close reader")
		}
		logger.Ctx(ctx).Info().Str("consumer", c.name).Msg("🛑 Kafka consumer stopped.")
	}()

	for {
		// 使用 FetchMessage 而不是 ReadMessage，处理完成后再手动提交
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Ctx(ctx).Error().Err(err).Str("consumer", c.name).Msg("could not fetch message, retrying")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryBackoff):
			}
			continue
		}

		c.process(ctx, msg)

		// 无论成功还是已经移交 DLT，都提交 offset
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Ctx(ctx).Error().Err(err).Str("consumer", c.name).Msg("failed to commit message")
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	msgCtx := ExtractTraceContext(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, c.name+".Process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.message.offset", msg.Offset),
			attribute.String("messaging.kafka.message.key", string(msg.Key)),
		),
	)
	defer span.End()

	if err := c.handler(msgCtx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "message handling failed")
		if c.failureHandler != nil {
			c.failureHandler.Handle(msgCtx, msg, err)
			return
		}
		logger.Ctx(msgCtx).Error().Err(err).
			Str("topic", msg.Topic).
			Int64("offset", msg.Offset).
			Msg("message handling failed, dropped")
	}
}
