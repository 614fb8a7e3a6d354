package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"pipeband-quiz-service/internal/domain"
	"pipeband-quiz-service/internal/playback"
	"pipeband-quiz-service/internal/quiz"
)

// UpdateKind tells subscribers what happened.
type UpdateKind string

const (
	KindState    UpdateKind = "state"
	KindComplete UpdateKind = "complete"
	KindReauth   UpdateKind = "reauth"
	KindClosed   UpdateKind = "closed"
)

// Summary is shown once every question has been answered.
type Summary struct {
	domain.GameResult
	Message  string `json:"message"`
	Duration string `json:"duration"`
}

// Snapshot is everything a client needs to render the session.
type Snapshot struct {
	SessionID   string           `json:"sessionId"`
	Phase       string           `json:"phase"`
	Index       int              `json:"index"`
	Total       int              `json:"total"`
	Question    *domain.Question `json:"question,omitempty"`
	Selection   domain.Selection `json:"selection"`
	Remaining   int              `json:"remaining"`
	Paused      bool             `json:"paused"`
	ExitOpen    bool             `json:"exitOpen"`
	CanContinue bool             `json:"canContinue"`
	Score       int              `json:"score"`
	Correct     int              `json:"correct"`
	Player      playback.Status  `json:"player"`
	LastStep    *quiz.Step       `json:"lastStep,omitempty"`
	Summary     *Summary         `json:"summary,omitempty"`
}

// Update is pushed to subscribers after every state change.
type Update struct {
	Kind     UpdateKind `json:"kind"`
	Snapshot Snapshot   `json:"snapshot"`
}

// Session runs one quiz attempt. Every mutation happens on the session's own goroutine;
// callers submit commands and wait for the result.
type Session struct {
	id     string
	userID string

	state    *quiz.Session
	gate     *playback.Gate
	relay    *playback.Relay
	clock    clockwork.Clock
	finalize func(sessionID string, result domain.GameResult)

	cmds      chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	ticker      clockwork.Ticker
	subscribers map[chan Update]struct{}
	exitOpen    bool
	lastStep    *quiz.Step
	summary     *Summary
}

func newSession(id, userID string, state *quiz.Session, engine playback.Engine, clock clockwork.Clock, settings Settings, finalize func(string, domain.GameResult)) *Session {
	s := &Session{
		id:          id,
		userID:      userID,
		state:       state,
		relay:       playback.NewRelay(16),
		clock:       clock,
		finalize:    finalize,
		cmds:        make(chan func()),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		subscribers: make(map[chan Update]struct{}),
	}
	s.gate = playback.NewGate(engine, s.post, playback.Options{
		Retry:     settings.Retry,
		Timeout:   settings.PlayTimeout,
		OnFailure: s.onPlayerFailure,
	})
	s.gate.Connect()
	return s
}

func (s *Session) ID() string     { return s.id }
func (s *Session) UserID() string { return s.userID }

// Done is closed once the session loop has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Stopped is closed once the session loop has returned. No result is finalized after that.
func (s *Session) Stopped() <-chan struct{} { return s.stopped }

// Close stops the session loop. Pending play commands are abandoned.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.relay.Close()
	})
}

// PlayerEvent relays a device event reported by the browser SDK.
func (s *Session) PlayerEvent(ctx context.Context, ev playback.Event) error {
	if !s.relay.Publish(ctx, ev) {
		return domain.ErrSessionClosed
	}
	return nil
}

// Activate records the click that unlocks audio.
func (s *Session) Activate(ctx context.Context) error {
	return s.do(ctx, func() error {
		if err := s.gate.Activate(); err != nil {
			return err
		}
		s.broadcast(KindState)
		return nil
	})
}

// Start begins question 0. Playback must be activated first.
func (s *Session) Start(ctx context.Context) error {
	return s.do(ctx, func() error {
		if err := s.state.Start(s.gate.Activated()); err != nil {
			return err
		}
		s.state.SetPlayerReady(s.gate.Ready())
		s.enterQuestion()
		s.broadcast(KindState)
		return nil
	})
}

// SelectBand records the band answer for question index.
func (s *Session) SelectBand(ctx context.Context, index int, band string) error {
	return s.do(ctx, func() error {
		if err := s.state.SelectBand(index, band); err != nil {
			return err
		}
		s.broadcast(KindState)
		return nil
	})
}

// SelectYear records the year answer for question index.
func (s *Session) SelectYear(ctx context.Context, index, year int) error {
	return s.do(ctx, func() error {
		if err := s.state.SelectYear(index, year); err != nil {
			return err
		}
		s.broadcast(KindState)
		return nil
	})
}

// Continue submits the answers for question index.
func (s *Session) Continue(ctx context.Context, index int) error {
	return s.do(ctx, func() error {
		step, err := s.state.Continue(index)
		if err != nil {
			return err
		}
		s.afterStep(step)
		return nil
	})
}

// Skip moves past question index, used when its track cannot be played.
func (s *Session) Skip(ctx context.Context, index int) error {
	return s.do(ctx, func() error {
		step, err := s.state.Skip(index)
		if err != nil {
			return err
		}
		s.afterStep(step)
		return nil
	})
}

// OpenExit shows the exit confirmation and pauses the clock.
func (s *Session) OpenExit(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.exitOpen = true
		s.state.SetOverlay(true)
		s.broadcast(KindState)
		return nil
	})
}

// CancelExit hides the exit confirmation and resumes the clock.
func (s *Session) CancelExit(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.exitOpen = false
		s.state.SetOverlay(false)
		s.broadcast(KindState)
		return nil
	})
}

// ConfirmExit abandons the attempt without saving and stops playback.
func (s *Session) ConfirmExit(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.gate.Stop()
		s.exitOpen = false
		s.broadcast(KindClosed)
		log.Info().Str("session_id", s.id).Int("answered", s.state.Answered()).Msg("session abandoned")
		s.Close()
		return nil
	})
}

// Snapshot returns the current view.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func() error {
		snap = s.snapshot()
		return nil
	})
	return snap, err
}

// Subscribe returns a channel of updates, starting with the current snapshot. Slow
// subscribers only see the latest update. The channel is closed when the session stops.
func (s *Session) Subscribe(ctx context.Context) (<-chan Update, func(), error) {
	ch := make(chan Update, 8)
	err := s.do(ctx, func() error {
		s.subscribers[ch] = struct{}{}
		ch <- Update{Kind: KindState, Snapshot: s.snapshot()}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	cancel := func() {
		_ = s.do(context.Background(), func() error {
			if _, ok := s.subscribers[ch]; ok {
				delete(s.subscribers, ch)
				close(ch)
			}
			return nil
		})
	}
	return ch, cancel, nil
}

func (s *Session) run() {
	s.ticker = s.clock.NewTicker(time.Second)
	defer close(s.stopped)
	defer func() {
		s.ticker.Stop()
		s.gate.Cancel()
		for ch := range s.subscribers {
			delete(s.subscribers, ch)
			close(ch)
		}
	}()

	events := s.relay.Events()
	for {
		select {
		case <-s.done:
			return
		case fn := <-s.cmds:
			fn()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.handleEvent(ev)
		case <-s.ticker.Chan():
			s.tick()
		}
	}
}

// do runs fn on the session loop and waits for its result.
func (s *Session) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case s.cmds <- func() { errc <- fn() }:
	case <-s.done:
		return domain.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-errc
}

// post hands play completions back to the loop.
func (s *Session) post(fn func()) {
	select {
	case s.cmds <- func() {
		fn()
		if !s.isClosed() {
			s.broadcast(KindState)
		}
	}:
	case <-s.done:
	}
}

func (s *Session) handleEvent(ev playback.Event) {
	s.gate.Handle(ev)
	s.state.SetPlayerReady(s.gate.Ready())
	if s.isClosed() {
		return
	}
	s.broadcast(KindState)
}

func (s *Session) onPlayerFailure(f playback.Failure) {
	if f.Category != playback.CategoryAuthentication {
		return
	}
	log.Warn().Str("session_id", s.id).Msg("playback credentials rejected, requesting sign-in")
	s.gate.Cancel()
	s.broadcast(KindReauth)
	s.Close()
}

func (s *Session) tick() {
	before := s.state.Remaining()
	step, fired := s.state.Tick()
	if fired {
		s.afterStep(step)
		return
	}
	if s.state.Remaining() != before {
		s.broadcast(KindState)
	}
}

func (s *Session) afterStep(step quiz.Step) {
	s.lastStep = &step
	if step.Complete {
		s.complete()
		return
	}
	s.gate.ClearError()
	s.enterQuestion()
	s.broadcast(KindState)
}

// enterQuestion loads the active track and restarts the one-second cadence.
func (s *Session) enterQuestion() {
	if q, ok := s.state.Current(); ok {
		s.gate.Load(q.MediaRef)
	}
	if s.ticker != nil {
		s.ticker.Reset(time.Second)
	}
}

func (s *Session) complete() {
	s.gate.Stop()
	result := s.state.Result()
	result.UserID = s.userID
	s.summary = &Summary{
		GameResult: result,
		Message:    domain.ResultMessage(result.CorrectAnswers, result.TotalQuestions),
		Duration:   domain.FormatDuration(result.TimeTakenSeconds),
	}
	log.Info().
		Str("session_id", s.id).
		Int("score", result.Score).
		Int("correct", result.CorrectAnswers).
		Int("time_taken", result.TimeTakenSeconds).
		Msg("session complete")
	s.broadcast(KindComplete)
	if s.finalize != nil {
		s.finalize(s.id, result)
	}
}

func (s *Session) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		SessionID: s.id,
		Phase:     s.state.Phase().String(),
		Index:     s.state.Index(),
		Total:     s.state.Total(),
		Selection: s.state.Selection(),
		Remaining: s.state.Remaining(),
		Paused:    s.state.Paused(),
		ExitOpen:  s.exitOpen,
		Player:    s.gate.Status(),
		LastStep:  s.lastStep,
		Summary:   s.summary,
	}
	if q, ok := s.state.Current(); ok {
		snap.Question = &q
		snap.CanContinue = snap.Selection.Complete()
	}
	result := s.state.Result()
	snap.Score = result.Score
	snap.Correct = result.CorrectAnswers
	return snap
}

func (s *Session) broadcast(kind UpdateKind) {
	u := Update{Kind: kind, Snapshot: s.snapshot()}
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// drop the oldest update so a slow reader never blocks the loop
			select {
			case <-ch:
			default:
			}
			ch <- u
		}
	}
}

// IsClosed reports whether err means the session is gone.
func IsClosed(err error) bool {
	return errors.Is(err, domain.ErrSessionClosed) || errors.Is(err, domain.ErrSessionNotFound)
}
