//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"certledger/internal/platform/config"
	audit "certledger/pkg/platform/audit"
	kafkastore "certledger/pkg/platform/audit/store/kafka"
	"certledger/pkg/testutil/containers"
)

func TestAuditStream_RoundTrip(t *testing.T) {
	broker := containers.NewRedpandaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cfg := config.KafkaConfig{Brokers: broker.Brokers, Topic: "certledger.audit.test"}
	client, err := NewClient(cfg)
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	require.NoError(t, EnsureTopic(ctx, client, cfg.Topic))
	require.NoError(t, EnsureTopic(ctx, client, cfg.Topic), "existing topic is not an error")

	store := kafkastore.New(client, cfg.Topic)
	require.NoError(t, store.Append(ctx, audit.Event{
		ID:              "evt-1",
		Action:          string(audit.EventCertificateRegistered),
		Subject:         "0xabc",
		TransactionHash: "0xdef",
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.NotEmpty(t, records)

	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, "evt-1", got.ID)
	assert.Equal(t, "0xabc", string(records[0].Key))
}

func TestNewClient_NoBrokers(t *testing.T) {
	client, err := NewClient(config.KafkaConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}
