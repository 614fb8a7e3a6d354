package quiz

import "pipeband-quiz-service/internal/domain"

// Phase is the sequencer position.
type Phase int

const (
	NotStarted Phase = iota
	InProgress
	Complete
)

func (p Phase) String() string {
	switch p {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Sequencer walks a fixed number of questions forward. Advance is keyed by the index it
// finishes, so a second trigger for the same question is rejected.
type Sequencer struct {
	total int
	phase Phase
	index int
}

func NewSequencer(total int) *Sequencer {
	return &Sequencer{total: total}
}

// Start enters the first question. It requires playback to be activated.
func (s *Sequencer) Start(activated bool) error {
	if s.phase != NotStarted {
		return domain.ErrAlreadyStarted
	}
	if !activated {
		return domain.ErrNotActivated
	}
	s.phase = InProgress
	s.index = 0
	return nil
}

// Advance finishes question index and reports whether the session is now complete.
func (s *Sequencer) Advance(index int) (bool, error) {
	if s.phase != InProgress {
		return false, domain.ErrNotInProgress
	}
	if index != s.index {
		return false, domain.ErrStaleQuestion
	}
	if s.index+1 < s.total {
		s.index++
		return false, nil
	}
	s.phase = Complete
	return true, nil
}

func (s *Sequencer) Phase() Phase { return s.phase }
func (s *Sequencer) Index() int   { return s.index }
func (s *Sequencer) Total() int   { return s.total }
