package domain

import "fmt"

const (
	highScoreMessage   = "You've got more right than a perfectly tuned chanter, well done!"
	mediumScoreMessage = "No false fingering here, just pure piping knowledge!"
	lowScoreMessage    = "Your trivia score is like an early E, time to study!"
)

// ResultMessage picks the results-view line for a correct/total ratio.
func ResultMessage(correct, total int) string {
	if total <= 0 {
		return lowScoreMessage
	}
	pct := correct * 100 / total
	switch {
	case pct >= 70:
		return highScoreMessage
	case pct >= 50:
		return mediumScoreMessage
	default:
		return lowScoreMessage
	}
}

// FormatDuration renders seconds as "M min S sec", or "S sec" below a minute.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	if seconds < 60 {
		return fmt.Sprintf("%d sec", seconds)
	}
	return fmt.Sprintf("%d min %d sec", seconds/60, seconds%60)
}
