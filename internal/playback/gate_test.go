package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeband-quiz-service/internal/domain"
)

type fakeEngine struct {
	mu     sync.Mutex
	plays  []string
	pauses int
	playFn func(ctx context.Context, ref string) error
}

func (e *fakeEngine) Play(ctx context.Context, _ string, ref string) error {
	e.mu.Lock()
	e.plays = append(e.plays, ref)
	fn := e.playFn
	e.mu.Unlock()
	if fn != nil {
		return fn(ctx, ref)
	}
	return nil
}

func (e *fakeEngine) Pause(context.Context, string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauses++
	return nil
}

func (e *fakeEngine) played() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.plays...)
}

func (e *fakeEngine) pauseCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pauses
}

type loop struct {
	posted chan func()
}

func newLoop() *loop {
	return &loop{posted: make(chan func(), 16)}
}

func (l *loop) post(f func()) { l.posted <- f }

func (l *loop) runOne(t *testing.T) {
	t.Helper()
	select {
	case f := <-l.posted:
		f()
	case <-time.After(2 * time.Second):
		t.Fatalf("no completion posted")
	}
}

func newTestGate(engine Engine, l *loop, onFailure func(Failure)) *Gate {
	return NewGate(engine, l.post, Options{
		Retry:     RetryPolicy{MaxAttempts: 1},
		Timeout:   time.Second,
		OnFailure: onFailure,
	})
}

func TestGateActivationFlow(t *testing.T) {
	engine := &fakeEngine{}
	l := newLoop()
	g := newTestGate(engine, l, nil)

	assert.Equal(t, Uninitialized, g.State())
	g.Connect()
	assert.Equal(t, Connecting, g.State())
	assert.ErrorIs(t, g.Activate(), ErrPlayerNotReady)

	g.Handle(Ready{DeviceID: "dev-1"})
	assert.Equal(t, AwaitingActivation, g.State())

	g.Load("spotify:track:a")
	assert.Empty(t, engine.played(), "no audio before the gesture")

	require.NoError(t, g.Activate())
	l.runOne(t)
	assert.Equal(t, []string{"spotify:track:a"}, engine.played())
	assert.Equal(t, Activated, g.State())
}

func TestGateActivationPersistsAcrossTracks(t *testing.T) {
	engine := &fakeEngine{}
	l := newLoop()
	g := newTestGate(engine, l, nil)
	g.Connect()
	g.Handle(Ready{DeviceID: "dev-1"})
	require.NoError(t, g.Activate())

	g.Load("spotify:track:a")
	l.runOne(t)
	g.Load("spotify:track:b")
	l.runOne(t)
	g.Load("spotify:track:b")

	assert.Equal(t, []string{"spotify:track:a", "spotify:track:b"}, engine.played())
	assert.Equal(t, Activated, g.State())
	assert.True(t, g.Activated())
}

func TestGateDropsStaleCompletion(t *testing.T) {
	release := make(chan struct{})
	engine := &fakeEngine{playFn: func(_ context.Context, ref string) error {
		if ref == "spotify:track:a" {
			<-release
			return domain.ErrPlaybackForbidden
		}
		return nil
	}}
	l := newLoop()
	g := newTestGate(engine, l, nil)
	g.Connect()
	g.Handle(Ready{DeviceID: "dev-1"})
	require.NoError(t, g.Activate())

	g.Load("spotify:track:a")
	g.Load("spotify:track:b")
	l.runOne(t)
	assert.Nil(t, g.Failure())

	close(release)
	l.runOne(t)
	assert.Nil(t, g.Failure(), "late failure for a must not touch b")
	assert.Equal(t, Activated, g.State())
}

func TestGateCompleteIgnoresOldGeneration(t *testing.T) {
	g := newTestGate(&fakeEngine{}, newLoop(), nil)
	g.want = "spotify:track:b"
	g.gen = 4

	assert.False(t, g.Complete(PlayCompletion{Ref: "spotify:track:a", Gen: 4, Err: domain.ErrRateLimited}))
	assert.False(t, g.Complete(PlayCompletion{Ref: "spotify:track:b", Gen: 3, Err: domain.ErrRateLimited}))
	assert.Nil(t, g.Failure())

	assert.True(t, g.Complete(PlayCompletion{Ref: "spotify:track:b", Gen: 4, Err: domain.ErrRateLimited}))
	require.NotNil(t, g.Failure())
	assert.Equal(t, msgRateLimited, g.Failure().Message)
}

func TestGatePlayFailureMessages(t *testing.T) {
	var failures []Failure
	engine := &fakeEngine{playFn: func(context.Context, string) error {
		return domain.ErrPlaybackForbidden
	}}
	l := newLoop()
	g := newTestGate(engine, l, func(f Failure) { failures = append(failures, f) })
	g.Connect()
	g.Handle(Ready{DeviceID: "dev-1"})
	require.NoError(t, g.Activate())
	g.Load("spotify:track:a")
	l.runOne(t)

	require.Len(t, failures, 1)
	assert.Equal(t, msgForbidden, failures[0].Message)
	assert.True(t, failures[0].Terminal)

	g.ClearError()
	assert.Equal(t, Errored, g.State(), "account failures are terminal")
}

func TestGateDeviceErrors(t *testing.T) {
	var got []ErrorCategory
	g := newTestGate(&fakeEngine{}, newLoop(), func(f Failure) { got = append(got, f.Category) })
	g.Connect()
	g.Handle(Ready{DeviceID: "dev-1"})

	g.Handle(Error{Category: CategoryPlayback, Message: "hiccup"})
	assert.Equal(t, Errored, g.State())
	assert.Equal(t, "hiccup", g.Status().Error.Message)
	g.ClearError()
	assert.Equal(t, AwaitingActivation, g.State())

	g.Handle(Error{Category: CategoryAuthentication})
	assert.Equal(t, msgSessionExpired, g.Failure().Message)
	g.ClearError()

	g.Handle(Error{Category: CategoryAccount})
	assert.ErrorIs(t, g.Activate(), domain.ErrPlaybackForbidden)
	assert.Equal(t, []ErrorCategory{CategoryPlayback, CategoryAuthentication, CategoryAccount}, got)
}

func TestGateNotReadyKeepsActivation(t *testing.T) {
	engine := &fakeEngine{}
	l := newLoop()
	g := newTestGate(engine, l, nil)
	g.Connect()
	g.Handle(Ready{DeviceID: "dev-1"})
	require.NoError(t, g.Activate())
	g.Load("spotify:track:a")
	l.runOne(t)

	g.Handle(NotReady{})
	assert.False(t, g.Ready())
	g.Load("spotify:track:b")
	assert.Len(t, engine.played(), 1)

	g.Handle(Ready{DeviceID: "dev-2"})
	l.runOne(t)
	assert.Equal(t, Activated, g.State())
	assert.Equal(t, []string{"spotify:track:a", "spotify:track:b"}, engine.played())
}

func TestGateStopPausesWithoutBlocking(t *testing.T) {
	engine := &fakeEngine{}
	l := newLoop()
	g := newTestGate(engine, l, nil)
	g.Connect()
	g.Handle(Ready{DeviceID: "dev-1"})
	require.NoError(t, g.Activate())

	g.Stop()
	assert.Eventually(t, func() bool { return engine.pauseCount() == 1 }, time.Second, 10*time.Millisecond)
}
