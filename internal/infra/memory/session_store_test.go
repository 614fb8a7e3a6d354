package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeband-quiz-service/internal/app"
)

type silentEngine struct{}

func (silentEngine) Play(context.Context, string, string) error { return nil }
func (silentEngine) Pause(context.Context, string) error        { return nil }

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()
	service := app.NewQuizService(SampleCatalog(), NewResultStore(), store)

	session, err := service.NewSession(context.Background(), "user-1", silentEngine{})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	got, ok := store.Get(session.ID())
	require.True(t, ok)
	assert.Same(t, session, got)

	service.Close(session.ID())
	_, ok = store.Get(session.ID())
	assert.False(t, ok)
	<-session.Done()
}

func TestSessionStoreShutdownStopsAll(t *testing.T) {
	store := NewSessionStore()
	service := app.NewQuizService(SampleCatalog(), NewResultStore(), store)
	ctx := context.Background()

	first, err := service.NewSession(ctx, "user-1", silentEngine{})
	require.NoError(t, err)
	second, err := service.NewSession(ctx, "user-2", silentEngine{})
	require.NoError(t, err)
	assert.Len(t, store.All(), 2)

	require.NoError(t, service.Shutdown(ctx))
	<-first.Stopped()
	<-second.Stopped()
	assert.Empty(t, store.All())

	_, err = service.NewSession(ctx, "user-3", silentEngine{})
	assert.ErrorIs(t, err, app.ErrShuttingDown)
}
