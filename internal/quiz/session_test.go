package quiz

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeband-quiz-service/internal/domain"
)

func testTracks(n int) []domain.Track {
	tracks := make([]domain.Track, n)
	for i := range tracks {
		tracks[i] = domain.Track{
			ID:       fmt.Sprintf("t%d", i),
			MediaRef: fmt.Sprintf("spotify:track:%d", i),
			Band:     fmt.Sprintf("Band %d", i),
			Year:     1990 + i,
		}
	}
	return tracks
}

func testPools(tracks []domain.Track) Pools {
	var p Pools
	for _, t := range tracks {
		p.Bands = append(p.Bands, t.Band)
		p.Years = append(p.Years, t.Year)
	}
	return p
}

func newTestSession(t *testing.T, n int) *Session {
	t.Helper()
	tracks := testTracks(n)
	s, err := NewSession(tracks, testPools(tracks), Settings{}, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	s.SetPlayerReady(true)
	return s
}

func tickN(s *Session, n int) (Step, bool) {
	var (
		step  Step
		fired bool
	)
	for i := 0; i < n; i++ {
		if st, ok := s.Tick(); ok {
			step, fired = st, true
		}
	}
	return step, fired
}

func TestSessionRequiresActivation(t *testing.T) {
	s := newTestSession(t, 2)
	assert.ErrorIs(t, s.Start(false), domain.ErrNotActivated)
	assert.Equal(t, NotStarted, s.Phase())

	require.NoError(t, s.Start(true))
	assert.ErrorIs(t, s.Start(true), domain.ErrAlreadyStarted)
}

func TestSessionEndToEnd(t *testing.T) {
	s := newTestSession(t, 2)
	require.NoError(t, s.Start(true))

	tickN(s, 5)
	require.Equal(t, 25, s.Remaining())
	require.NoError(t, s.SelectBand(0, "Band 0"))
	require.NoError(t, s.SelectYear(0, 1990))

	step, err := s.Continue(0)
	require.NoError(t, err)
	assert.Equal(t, Step{Index: 0, Result: Result{Points: 225, Correct: true}, Next: 1}, step)
	assert.Equal(t, 30, s.Remaining())
	assert.Equal(t, domain.Selection{}, s.Selection())

	q, ok := s.Current()
	require.True(t, ok)
	wrong := q.BandOptions[0]
	if wrong == "Band 1" {
		wrong = q.BandOptions[1]
	}
	require.NoError(t, s.SelectBand(1, wrong))

	step, fired := tickN(s, 30)
	require.True(t, fired)
	assert.True(t, step.Complete)
	assert.Equal(t, Complete, s.Phase())

	assert.Equal(t, domain.GameResult{Score: 225, CorrectAnswers: 1, TotalQuestions: 2, TimeTakenSeconds: 35}, s.Result())
}

func TestSessionIndexIsMonotonic(t *testing.T) {
	s := newTestSession(t, 10)
	require.NoError(t, s.Start(true))

	seen := []int{s.Index()}
	for i := 0; i < 10; i++ {
		step, err := s.Skip(i)
		require.NoError(t, err)
		if step.Complete {
			assert.Equal(t, 9, i)
			break
		}
		seen = append(seen, step.Next)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen)
	assert.Equal(t, Complete, s.Phase())
	assert.Equal(t, 10, s.Answered())

	_, err := s.Skip(9)
	assert.ErrorIs(t, err, domain.ErrNotInProgress)
}

func TestSessionSingleFireTimerThenContinue(t *testing.T) {
	s := newTestSession(t, 3)
	require.NoError(t, s.Start(true))
	require.NoError(t, s.SelectBand(0, "Band 0"))
	require.NoError(t, s.SelectYear(0, 1990))

	_, fired := tickN(s, 30)
	require.True(t, fired)

	_, err := s.Continue(0)
	assert.ErrorIs(t, err, domain.ErrStaleQuestion)
	assert.Equal(t, 1, s.Answered())
	assert.Equal(t, 1, s.Index())
}

func TestSessionSingleFireContinueThenTimer(t *testing.T) {
	s := newTestSession(t, 3)
	require.NoError(t, s.Start(true))
	tickN(s, 29)
	require.NoError(t, s.SelectBand(0, "Band 0"))
	require.NoError(t, s.SelectYear(0, 1990))

	_, err := s.Continue(0)
	require.NoError(t, err)

	_, fired := s.Tick()
	assert.False(t, fired)
	assert.Equal(t, 1, s.Answered())
	assert.Equal(t, 29, s.Remaining())
}

func TestSessionContinueNeedsBothSelections(t *testing.T) {
	s := newTestSession(t, 2)
	require.NoError(t, s.Start(true))
	require.NoError(t, s.SelectBand(0, "Band 0"))

	_, err := s.Continue(0)
	assert.ErrorIs(t, err, domain.ErrSelectionIncomplete)
	assert.ErrorIs(t, s.SelectYear(0, 1800), domain.ErrInvalidOption)
	assert.ErrorIs(t, s.SelectYear(1, 1991), domain.ErrStaleQuestion)
}

func TestSessionOptionsAreMemoized(t *testing.T) {
	s := newTestSession(t, 2)
	require.NoError(t, s.Start(true))

	first, _ := s.Current()
	again, _ := s.Current()
	assert.Equal(t, first.BandOptions, again.BandOptions)
	assert.Equal(t, first.YearOptions, again.YearOptions)
	assert.Contains(t, first.BandOptions, "Band 0")
	assert.Contains(t, first.YearOptions, 1990)
}

func TestSessionClockPausedUntilPlayerReady(t *testing.T) {
	tracks := testTracks(1)
	s, err := NewSession(tracks, testPools(tracks), Settings{QuestionSeconds: 5}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.NoError(t, s.Start(true))

	_, fired := tickN(s, 10)
	assert.False(t, fired)
	assert.Equal(t, 5, s.Remaining())

	s.SetPlayerReady(true)
	s.SetOverlay(true)
	tickN(s, 10)
	assert.Equal(t, 5, s.Remaining())

	s.SetOverlay(false)
	step, fired := tickN(s, 5)
	assert.True(t, fired)
	assert.True(t, step.Complete)
}

func TestNewSessionWithoutTracks(t *testing.T) {
	_, err := NewSession(nil, Pools{}, Settings{}, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, domain.ErrNoTracks)
}
