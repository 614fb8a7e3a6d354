package quiz

import (
	"math/rand"

	"pipeband-quiz-service/internal/domain"
)

// Settings tunes a session.
type Settings struct {
	QuestionSeconds int
	OptionCount     int
}

// Pools are the distinct values distractors are drawn from.
type Pools struct {
	Bands []string
	Years []int
}

// Step describes what an advance did.
type Step struct {
	Index    int    `json:"index"`
	Result   Result `json:"result"`
	Next     int    `json:"next"`
	Complete bool   `json:"complete"`
}

// Session is the quiz state machine for one attempt. It is not safe for concurrent use;
// a single owner goroutine must drive it.
type Session struct {
	settings  Settings
	tracks    []domain.Track
	pools     Pools
	rnd       *rand.Rand
	seq       *Sequencer
	timer     *Countdown
	tally     *Tally
	selection domain.Selection
	questions map[int]domain.Question
}

// NewSession fixes the track list for an attempt.
func NewSession(tracks []domain.Track, pools Pools, settings Settings, rnd *rand.Rand) (*Session, error) {
	if len(tracks) == 0 {
		return nil, domain.ErrNoTracks
	}
	if settings.QuestionSeconds <= 0 {
		settings.QuestionSeconds = DefaultQuestionSeconds
	}
	if settings.OptionCount <= 0 {
		settings.OptionCount = DefaultOptionCount
	}
	return &Session{
		settings:  settings,
		tracks:    append([]domain.Track(nil), tracks...),
		pools:     pools,
		rnd:       rnd,
		seq:       NewSequencer(len(tracks)),
		timer:     NewCountdown(settings.QuestionSeconds),
		tally:     NewTally(settings.QuestionSeconds),
		questions: make(map[int]domain.Question, len(tracks)),
	}, nil
}

// Start enters question 0 with a full clock.
func (s *Session) Start(activated bool) error {
	if err := s.seq.Start(activated); err != nil {
		return err
	}
	s.selection = domain.Selection{}
	s.timer.Reset()
	return nil
}

// Current returns the active question.
func (s *Session) Current() (domain.Question, bool) {
	if s.seq.Phase() != InProgress {
		return domain.Question{}, false
	}
	return s.question(s.seq.Index()), true
}

// question memoizes option sets per index so repeated renders see a stable order.
func (s *Session) question(i int) domain.Question {
	if q, ok := s.questions[i]; ok {
		return q
	}
	track := s.tracks[i]
	q := domain.Question{
		Index:       i,
		Track:       track,
		MediaRef:    track.MediaRef,
		Title:       track.Title,
		BandOptions: GenerateOptions(track.Band, s.pools.Bands, s.settings.OptionCount, s.rnd),
		YearOptions: GenerateOptions(track.Year, s.pools.Years, s.settings.OptionCount, s.rnd),
	}
	s.questions[i] = q
	return q
}

// SelectBand records the band answer for question index.
func (s *Session) SelectBand(index int, band string) error {
	q, err := s.active(index)
	if err != nil {
		return err
	}
	if !contains(q.BandOptions, band) {
		return domain.ErrInvalidOption
	}
	s.selection.Band = &band
	return nil
}

// SelectYear records the year answer for question index.
func (s *Session) SelectYear(index int, year int) error {
	q, err := s.active(index)
	if err != nil {
		return err
	}
	if !contains(q.YearOptions, year) {
		return domain.ErrInvalidOption
	}
	s.selection.Year = &year
	return nil
}

// Continue submits the current selection for question index. Both answers are required.
func (s *Session) Continue(index int) (Step, error) {
	if _, err := s.active(index); err != nil {
		return Step{}, err
	}
	if !s.selection.Complete() {
		return Step{}, domain.ErrSelectionIncomplete
	}
	return s.advance(index)
}

// Skip moves past question index with whatever is selected, used when a track cannot play.
func (s *Session) Skip(index int) (Step, error) {
	return s.advance(index)
}

// Tick advances the clock one second. When it hits zero the question is submitted as is.
func (s *Session) Tick() (Step, bool) {
	if s.seq.Phase() != InProgress {
		return Step{}, false
	}
	if !s.timer.Tick() {
		return Step{}, false
	}
	step, err := s.advance(s.seq.Index())
	if err != nil {
		return Step{}, false
	}
	return step, true
}

func (s *Session) advance(index int) (Step, error) {
	if _, err := s.active(index); err != nil {
		return Step{}, err
	}
	track := s.tracks[index]
	remaining := s.timer.Remaining()
	result := Score(track, s.selection, remaining)

	done, err := s.seq.Advance(index)
	if err != nil {
		return Step{}, err
	}
	s.tally.Add(result, remaining)

	step := Step{Index: index, Result: result, Complete: done}
	if !done {
		step.Next = s.seq.Index()
		s.selection = domain.Selection{}
		s.timer.Reset()
	}
	return step, nil
}

func (s *Session) active(index int) (domain.Question, error) {
	if s.seq.Phase() != InProgress {
		return domain.Question{}, domain.ErrNotInProgress
	}
	if index != s.seq.Index() {
		return domain.Question{}, domain.ErrStaleQuestion
	}
	return s.question(index), nil
}

// SetOverlay pauses or resumes the clock for the exit confirmation.
func (s *Session) SetOverlay(shown bool) { s.timer.SetOverlay(shown) }

// SetPlayerReady pauses the clock while the player is not ready.
func (s *Session) SetPlayerReady(ready bool) { s.timer.SetPlayerReady(ready) }

func (s *Session) Phase() Phase                { return s.seq.Phase() }
func (s *Session) Index() int                  { return s.seq.Index() }
func (s *Session) Total() int                  { return s.seq.Total() }
func (s *Session) Remaining() int              { return s.timer.Remaining() }
func (s *Session) Paused() bool                { return s.timer.Paused() }
func (s *Session) Selection() domain.Selection { return s.selection }
func (s *Session) Answered() int               { return s.tally.Answered() }

// Result is the running tally as a game result.
func (s *Session) Result() domain.GameResult {
	return s.tally.Result(s.seq.Total())
}

func contains[T comparable](values []T, v T) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
