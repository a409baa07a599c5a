//go:build integration

package outbox_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"provenance/internal/registry/models"
	"provenance/internal/registry/service"
	registrypg "provenance/internal/registry/store/postgres"
	"provenance/pkg/platform/audit/outbox"
	"provenance/pkg/platform/audit/publishers/compliance"
	auditpg "provenance/pkg/platform/audit/store/postgres"
	"provenance/pkg/testutil/containers"
)

const topic = "provenance.audit.it"

// TestRelay_EndToEnd mints an asset against Postgres, relays the outbox to
// Redpanda and reads the event back.
func TestRelay_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := containers.GetManager().GetPostgres(t)
	require.NoError(t, pg.ResetRegistry(ctx))
	broker := containers.GetManager().GetRedpanda(t)

	svc, err := service.New(registrypg.New(pg.DB), "mint",
		service.WithAuditPublisher(compliance.New(auditpg.New(pg.DB))),
	)
	require.NoError(t, err)

	id, err := svc.CreateAsset(ctx, "mint", models.AssetMetadata{
		Serial:   "SN1",
		AuthHash: bytes.Repeat([]byte{0xAA}, 32),
		Model:    "M1",
	})
	require.NoError(t, err)

	// The rejected write rolls back; only its security event reaches the outbox.
	_, err = svc.LogEvent(ctx, "someone-else", id, "scan", nil)
	require.Error(t, err)
	count, err := svc.EventCount(ctx, id)
	require.NoError(t, err)
	require.Zero(t, count)

	producer, err := kgo.NewClient(kgo.SeedBrokers(broker.Broker))
	require.NoError(t, err)
	defer producer.Close()
	require.NoError(t, outbox.EnsureTopic(ctx, kadm.NewClient(producer), topic, 1, 1))

	relay := outbox.NewRelay(pg.DB, producer, topic)
	n, err := relay.PublishPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = relay.PublishPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "published rows must not be relayed twice")

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	var records []*kgo.Record
	for len(records) < 2 {
		fetches := consumer.PollFetches(ctx)
		require.NoError(t, fetches.Err())
		records = append(records, fetches.Records()...)
	}
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, []byte(id.String()), r.Key)
		assert.Equal(t, "event_type", r.Headers[0].Key)
	}
	assert.Equal(t, []byte("asset_created"), records[0].Headers[0].Value)
	assert.Equal(t, []byte("authorization_denied"), records[1].Headers[0].Value)
}
