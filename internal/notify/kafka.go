package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// MessageWriter - часть kafka.Writer, которая нужна каналу
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaMessage - тело сообщения в топике уведомлений
type KafkaMessage struct {
	ID     string    `json:"id"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// Kafka публикует каждое уведомление отдельным сообщением в топик
type Kafka struct {
	writer MessageWriter
	now    func() time.Time
}

func NewKafkaWriter(brokers []string, topic string) (*kafka.Writer, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, errors.New("kafka brokers and topic are required")
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}, nil
}

func NewKafka(writer MessageWriter) *Kafka {
	return &Kafka{writer: writer, now: time.Now}
}

func (k *Kafka) Send(ctx context.Context, text string) error {
	msg := KafkaMessage{ID: uuid.NewString(), Text: text, SentAt: k.now().UTC()}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("kafka: marshal message: %w", err)
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("payment_notification")},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka: write message: %w", err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
