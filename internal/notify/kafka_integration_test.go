//go:build integration

package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func TestKafka_PublishesToBroker(t *testing.T) {
	ctx := context.Background()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	w, err := NewKafkaWriter(brokers, "payment-notifications")
	require.NoError(t, err)
	k := NewKafka(w)
	defer k.Close()

	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	// топик создаётся при первой записи, первые попытки могут вернуть ошибку лидера
	require.Eventually(t, func() bool {
		return k.Send(sendCtx, "✅ Заказ оплачен") == nil
	}, 30*time.Second, time.Second)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    "payment-notifications",
		GroupID:  "notify-test",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	readCtx, cancelRead := context.WithTimeout(ctx, 30*time.Second)
	defer cancelRead()
	msg, err := reader.ReadMessage(readCtx)
	require.NoError(t, err)

	var body KafkaMessage
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "✅ Заказ оплачен", body.Text)
}
