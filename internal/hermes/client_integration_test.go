//go:build integration

package hermes

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipWithoutNATS(t *testing.T) string {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping integration test")
	}
	return url
}

func TestIntegration_TrustUpdatedRoundTrip(t *testing.T) {
	natsURL := skipWithoutNATS(t)

	client, err := NewClient(context.Background(), natsURL, os.Getenv("NATS_TOKEN"), slog.Default())
	require.NoError(t, err)
	defer client.Close()
	require.True(t, client.Connected())

	want := TrustUpdatedEvent{
		ClaimID:        uuid.NewString(),
		Score:          62.5,
		Level:          "good",
		Confidence:     0.3935,
		Momentum:       -4.25,
		WeightedRatio:  71.0312,
		CompositeScore: 58.1177,
		IsStable:       true,
		Tier:           "silver",
		TierProgress:   0.4,
		ComputedAt:     time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC),
	}

	received := make(chan TrustUpdatedEvent, 8)
	err = client.Subscribe(SubjectTrustUpdated, func(subject string, data []byte) {
		var evt TrustUpdatedEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			t.Errorf("decode %s: %v", subject, err)
			return
		}
		// other publishers may share the subject
		if evt.ClaimID == want.ClaimID {
			received <- evt
		}
	})
	require.NoError(t, err)

	// let the subscription reach the server before publishing
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, client.Publish(SubjectTrustUpdated, want))

	select {
	case got := <-received:
		assert.Equal(t, want.ClaimID, got.ClaimID)
		assert.Equal(t, want.Score, got.Score)
		assert.Equal(t, want.Level, got.Level)
		assert.Equal(t, want.Momentum, got.Momentum)
		assert.Equal(t, want.CompositeScore, got.CompositeScore)
		assert.Equal(t, want.Tier, got.Tier)
		assert.True(t, got.IsStable)
		assert.True(t, want.ComputedAt.Equal(got.ComputedAt))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for trust update")
	}
}
