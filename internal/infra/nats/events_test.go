package nats

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeband-quiz-service/internal/domain"
)

func TestDecodeCompleted(t *testing.T) {
	ev := domain.SessionCompleted{
		SessionID:   "s-1",
		Result:      domain.GameResult{UserID: "u-1", Score: 225, CorrectAnswers: 1, TotalQuestions: 2, TimeTakenSeconds: 35},
		Saved:       true,
		CompletedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	got, err := DecodeCompleted(data)
	require.NoError(t, err)
	assert.Equal(t, ev, got)

	_, err = DecodeCompleted([]byte(`{"saved":true}`))
	assert.Error(t, err)
	_, err = DecodeCompleted([]byte(`not json`))
	assert.Error(t, err)
}

func TestPublishHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewPublisher(nil, "").PublishCompleted(ctx, domain.SessionCompleted{SessionID: "s-1"})
	assert.ErrorIs(t, err, context.Canceled)
}
