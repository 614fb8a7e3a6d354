package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"pipeband-quiz-service/internal/domain"
	"pipeband-quiz-service/internal/playback"
	"pipeband-quiz-service/internal/quiz"
)

// DefaultLeaderboardLimit is used when the caller does not ask for a size.
const DefaultLeaderboardLimit = 50

// TrackCatalog supplies quiz tracks and the distractor pools.
type TrackCatalog interface {
	SampleTracks(ctx context.Context, n int) ([]domain.Track, error)
	DistinctBands(ctx context.Context) ([]string, error)
	DistinctYears(ctx context.Context) ([]int, error)
}

// ResultStore persists finished sessions and serves the top scores.
type ResultStore interface {
	CreateGameSession(ctx context.Context, result domain.GameResult) (string, error)
	TopScores(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// UserStore records players who signed in.
type UserStore interface {
	UpsertUser(ctx context.Context, user domain.User) (string, error)
}

// SessionRepository abstracts where live sessions are registered (in-memory, Redis, etc).
type SessionRepository interface {
	Add(session *Session)
	Get(id string) (*Session, bool)
	Remove(id string)
	All() []*Session
}

// ErrShuttingDown is returned for new sessions once Shutdown has begun.
var ErrShuttingDown = errors.New("quiz service shutting down")

// EventPublisher announces finished sessions.
type EventPublisher interface {
	PublishCompleted(ctx context.Context, ev domain.SessionCompleted) error
}

// Settings are the quiz knobs applied to every new session.
type Settings struct {
	Questions       int
	QuestionSeconds int
	OptionCount     int
	PlayTimeout     time.Duration
	SaveTimeout     time.Duration
	Retry           playback.RetryPolicy
}

func (s Settings) withDefaults() Settings {
	if s.Questions <= 0 {
		s.Questions = 10
	}
	if s.QuestionSeconds <= 0 {
		s.QuestionSeconds = quiz.DefaultQuestionSeconds
	}
	if s.OptionCount <= 0 {
		s.OptionCount = quiz.DefaultOptionCount
	}
	if s.PlayTimeout <= 0 {
		s.PlayTimeout = playback.DefaultCommandTimeout
	}
	if s.SaveTimeout <= 0 {
		s.SaveTimeout = 15 * time.Second
	}
	if s.Retry.MaxAttempts == 0 {
		s.Retry = playback.DefaultRetryPolicy()
	}
	return s
}

// Option configures a QuizService.
type Option func(*QuizService)

// WithClock replaces the wall clock driving question timers.
func WithClock(clock clockwork.Clock) Option {
	return func(q *QuizService) { q.clock = clock }
}

// WithPublisher announces completed sessions on p.
func WithPublisher(p EventPublisher) Option {
	return func(q *QuizService) { q.events = p }
}

// WithUsers enables RegisterUser.
func WithUsers(users UserStore) Option {
	return func(q *QuizService) { q.users = users }
}

// WithSettings overrides the default quiz knobs.
func WithSettings(s Settings) Option {
	return func(q *QuizService) { q.settings = s.withDefaults() }
}

// WithSeed makes option shuffling deterministic.
func WithSeed(seed int64) Option {
	return func(q *QuizService) {
		q.seed = func() int64 { return seed }
	}
}

// QuizService contains the core quiz use cases.
type QuizService struct {
	catalog  TrackCatalog
	results  ResultStore
	sessions SessionRepository
	users    UserStore
	events   EventPublisher
	clock    clockwork.Clock
	settings Settings
	seed     func() int64

	mu      sync.Mutex
	closing bool
	saves   sync.WaitGroup
}

func NewQuizService(catalog TrackCatalog, results ResultStore, sessions SessionRepository, opts ...Option) *QuizService {
	q := &QuizService{
		catalog:  catalog,
		results:  results,
		sessions: sessions,
		clock:    clockwork.NewRealClock(),
		settings: Settings{}.withDefaults(),
		seed:     func() int64 { return time.Now().UnixNano() },
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Settings returns the knobs in effect.
func (q *QuizService) Settings() Settings { return q.settings }

// NewSession loads a fresh track list and starts the session loop. engine plays tracks on
// the user's device.
func (q *QuizService) NewSession(ctx context.Context, userID string, engine playback.Engine) (*Session, error) {
	if q.isClosing() {
		return nil, ErrShuttingDown
	}
	var (
		tracks []domain.Track
		pools  quiz.Pools
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		tracks, err = q.catalog.SampleTracks(gctx, q.settings.Questions)
		return err
	})
	g.Go(func() (err error) {
		pools.Bands, err = q.catalog.DistinctBands(gctx)
		return err
	})
	g.Go(func() (err error) {
		pools.Years, err = q.catalog.DistinctYears(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load tracks: %w", err)
	}

	state, err := quiz.NewSession(tracks, pools, quiz.Settings{
		QuestionSeconds: q.settings.QuestionSeconds,
		OptionCount:     q.settings.OptionCount,
	}, rand.New(rand.NewSource(q.seed())))
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	s := newSession(id, userID, state, engine, q.clock, q.settings, q.finalize)

	q.mu.Lock()
	if q.closing {
		q.mu.Unlock()
		return nil, ErrShuttingDown
	}
	q.sessions.Add(s)
	go s.run()
	q.mu.Unlock()

	log.Info().Str("session_id", id).Str("user_id", userID).Int("tracks", len(tracks)).Msg("session created")
	return s, nil
}

// Get returns a live session.
func (q *QuizService) Get(id string) (*Session, error) {
	s, ok := q.sessions.Get(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// Close stops a session and forgets it. Closing an unknown session is a no-op.
func (q *QuizService) Close(id string) {
	s, ok := q.sessions.Get(id)
	if !ok {
		return
	}
	s.Close()
	q.sessions.Remove(id)
}

// SaveResult validates and persists a result for userID.
func (q *QuizService) SaveResult(ctx context.Context, userID string, result domain.GameResult) (string, error) {
	if userID == "" {
		return "", domain.ErrUnauthorized
	}
	result.UserID = userID
	if err := result.Validate(); err != nil {
		return "", err
	}
	id, err := q.results.CreateGameSession(ctx, result)
	if err != nil {
		return "", fmt.Errorf("save result: %w", err)
	}
	return id, nil
}

// Leaderboard returns the best score per player, highest first.
func (q *QuizService) Leaderboard(ctx context.Context, limit int) (domain.Leaderboard, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	entries, err := q.results.TopScores(ctx, limit)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("top scores: %w", err)
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: q.clock.Now()}, nil
}

// RegisterUser upserts the signed-in player and returns their id.
func (q *QuizService) RegisterUser(ctx context.Context, p domain.Profile) (string, error) {
	if q.users == nil {
		return "", errors.New("user store not configured")
	}
	user := domain.User{SpotifyID: p.ID, DisplayName: p.DisplayName, Email: p.Email}
	if len(p.AvatarURLs) > 0 {
		user.AvatarURL = p.AvatarURLs[0]
	}
	return q.users.UpsertUser(ctx, user)
}

// Wait blocks until background saves have finished.
func (q *QuizService) Wait() {
	q.saves.Wait()
}

// Shutdown refuses new sessions, stops every live one, then waits for pending saves.
// Sessions that complete before their loop stops are still saved.
func (q *QuizService) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closing = true
	q.mu.Unlock()

	live := q.sessions.All()
	for _, s := range live {
		s.Close()
	}
	for _, s := range live {
		select {
		case <-s.Stopped():
			q.sessions.Remove(s.ID())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	log.Info().Int("sessions", len(live)).Msg("live sessions stopped")

	// every loop has returned, so no finalize can race with Wait
	saved := make(chan struct{})
	go func() {
		q.saves.Wait()
		close(saved)
	}()
	select {
	case <-saved:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *QuizService) isClosing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closing
}

// finalize persists a completed session in the background. A failed save is logged and does
// not affect what the player sees.
func (q *QuizService) finalize(sessionID string, result domain.GameResult) {
	q.saves.Add(1)
	go func() {
		defer q.saves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), q.settings.SaveTimeout)
		defer cancel()

		saved := true
		if _, err := q.SaveResult(ctx, result.UserID, result); err != nil {
			saved = false
			log.Error().Err(err).Str("session_id", sessionID).Str("user_id", result.UserID).Msg("failed to save game result")
		}
		if q.events == nil {
			return
		}
		ev := domain.SessionCompleted{
			SessionID:   sessionID,
			Result:      result,
			Saved:       saved,
			CompletedAt: q.clock.Now(),
		}
		if err := q.events.PublishCompleted(ctx, ev); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to publish completed session")
		}
	}()
}
