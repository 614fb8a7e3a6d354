package quiz

import "pipeband-quiz-service/internal/domain"

const (
	// BasePoints is awarded for a fully correct answer.
	BasePoints = 100
	// TimeBonusFactor is multiplied by the whole seconds left on the clock.
	TimeBonusFactor = 5
	// DefaultQuestionSeconds is the countdown length of a question.
	DefaultQuestionSeconds = 30
)

// Result is the outcome of one scored question.
type Result struct {
	Points  int  `json:"points"`
	Correct bool `json:"correct"`
}

// Score grades a selection. Both band and year must match; there is no partial credit.
func Score(track domain.Track, sel domain.Selection, remaining int) Result {
	if sel.Band == nil || sel.Year == nil {
		return Result{}
	}
	if *sel.Band != track.Band || *sel.Year != track.Year {
		return Result{}
	}
	if remaining < 0 {
		remaining = 0
	}
	return Result{Points: BasePoints + remaining*TimeBonusFactor, Correct: true}
}

// Tally accumulates per-question results into session totals.
type Tally struct {
	totalTime int
	score     int
	correct   int
	timeTaken int
	answered  int
}

func NewTally(totalTime int) *Tally {
	if totalTime <= 0 {
		totalTime = DefaultQuestionSeconds
	}
	return &Tally{totalTime: totalTime}
}

// Add records one question. remaining is clamped to the question length.
func (t *Tally) Add(r Result, remaining int) {
	remaining = clamp(remaining, 0, t.totalTime)
	t.score += r.Points
	if r.Correct {
		t.correct++
	}
	t.timeTaken += t.totalTime - remaining
	t.answered++
}

func (t *Tally) Score() int     { return t.score }
func (t *Tally) Correct() int   { return t.correct }
func (t *Tally) TimeTaken() int { return t.timeTaken }
func (t *Tally) Answered() int  { return t.answered }

// Result renders the tally as the persisted session result.
func (t *Tally) Result(totalQuestions int) domain.GameResult {
	return domain.GameResult{
		Score:            t.score,
		CorrectAnswers:   t.correct,
		TotalQuestions:   totalQuestions,
		TimeTakenSeconds: t.timeTaken,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
