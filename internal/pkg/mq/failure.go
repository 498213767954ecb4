package mq

import (
	"context"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"ordersystem/internal/pkg/logger"
)

// 死信消息携带的源信息 header
const (
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderExceptionFqcn     = "x-exception-fqcn"
	HeaderExceptionMessage  = "x-exception-message"
)

// DeadLetterTopic 返回某个主题对应的死信主题名。
func DeadLetterTopic(topic string) string {
	return topic + ".dlt"
}

// FailureHandler 把处理失败的消息转发到死信主题。
type FailureHandler struct {
	dltWriter MessageWriter
}

func NewFailureHandler(dltWriter MessageWriter) *FailureHandler {
	return &FailureHandler{dltWriter: dltWriter}
}

// Handle 尽力把消息写入 DLT；写入失败时只能记录 CRITICAL 日志。
func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, cause error) {
	dlt := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(append([]kafka.Header{}, msg.Headers...),
			kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
			kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
			kafka.Header{Key: HeaderExceptionFqcn, Value: []byte(fmt.Sprintf("%T", cause))},
			kafka.Header{Key: HeaderExceptionMessage, Value: []byte(cause.Error())},
		),
	}

	log := logger.Ctx(ctx).Error().
		Err(cause).
		Str("original_topic", msg.Topic).
		Int("original_partition", msg.Partition).
		Int64("original_offset", msg.Offset).
		Str("key", string(msg.Key))

	if h.dltWriter == nil {
		log.Msg("🚨 message processing failed and no dead letter topic is configured")
		return
	}
	if err := h.dltWriter.WriteMessages(ctx, dlt); err != nil {
		log.AnErr("dlt_error", err).Msg("🚨 CRITICAL: failed to forward message to dead letter topic")
		return
	}
	log.Msg("message forwarded to dead letter topic")
}
