package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeband-quiz-service/internal/domain"
)

func TestResultStoreTopScoresBestPerUser(t *testing.T) {
	store := NewResultStore()
	ctx := context.Background()
	base := time.Now()
	tick := 0
	store.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Second) }

	alice, err := store.UpsertUser(ctx, domain.User{SpotifyID: "sp-a", DisplayName: "Alice"})
	require.NoError(t, err)
	bob, err := store.UpsertUser(ctx, domain.User{SpotifyID: "sp-b"})
	require.NoError(t, err)
	carol, err := store.UpsertUser(ctx, domain.User{SpotifyID: "sp-c", DisplayName: "Carol"})
	require.NoError(t, err)

	again, err := store.UpsertUser(ctx, domain.User{SpotifyID: "sp-a", DisplayName: "Alice B"})
	require.NoError(t, err)
	assert.Equal(t, alice, again)

	save := func(user string, score, correct int) {
		_, err := store.CreateGameSession(ctx, domain.GameResult{
			UserID: user, Score: score, CorrectAnswers: correct, TotalQuestions: 10, TimeTakenSeconds: 100,
		})
		require.NoError(t, err)
	}
	save(alice, 300, 3)
	save(bob, 900, 7)
	save(alice, 1200, 9)
	save(carol, 900, 6)

	entries, err := store.TopScores(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.LeaderboardEntry{UserID: alice, DisplayName: "Alice B", Score: 1200, CorrectAnswers: 9}, entries[0])
	assert.Equal(t, bob, entries[1].UserID)
	assert.Equal(t, "Anonymous", entries[1].DisplayName)
	assert.Equal(t, carol, entries[2].UserID)

	top, err := store.TopScores(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestResultStoreRejectsInvalid(t *testing.T) {
	store := NewResultStore()
	_, err := store.CreateGameSession(context.Background(), domain.GameResult{UserID: "u", Score: 1, CorrectAnswers: 5, TotalQuestions: 2})
	assert.ErrorIs(t, err, domain.ErrInvalidResult)
	assert.Empty(t, store.Results())
}
