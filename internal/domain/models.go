package domain

import "time"

// Track is one quiz item: a playable media reference plus the band and year it is scored against.
type Track struct {
	ID         string `json:"id"`
	MediaRef   string `json:"mediaRef"`
	Band       string `json:"band"`
	Year       int    `json:"year"`
	Title      string `json:"title"`
	Album      string `json:"album,omitempty"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

// Selection holds the per-question answer. Nil fields mean nothing was picked.
type Selection struct {
	Band *string `json:"band"`
	Year *int    `json:"year"`
}

// Complete reports whether both answers are set.
func (s Selection) Complete() bool {
	return s.Band != nil && s.Year != nil
}

// Question pairs a track with its band and year option sets.
type Question struct {
	Index       int      `json:"index"`
	Track       Track    `json:"-"`
	MediaRef    string   `json:"mediaRef"`
	Title       string   `json:"title"`
	BandOptions []string `json:"bandOptions"`
	YearOptions []int    `json:"yearOptions"`
}

// GameResult is the terminal tally of one session, as persisted.
type GameResult struct {
	UserID           string `json:"userId,omitempty"`
	Score            int    `json:"score"`
	CorrectAnswers   int    `json:"correctAnswers"`
	TotalQuestions   int    `json:"totalQuestions"`
	TimeTakenSeconds int    `json:"timeTakenSeconds"`
}

// Validate checks the result is internally consistent.
func (r GameResult) Validate() error {
	if r.Score < 0 || r.CorrectAnswers < 0 || r.TimeTakenSeconds < 0 {
		return ErrInvalidResult
	}
	if r.TotalQuestions <= 0 || r.CorrectAnswers > r.TotalQuestions {
		return ErrInvalidResult
	}
	return nil
}

// LeaderboardEntry is one row of the top scores list.
type LeaderboardEntry struct {
	UserID         string `json:"userId"`
	DisplayName    string `json:"displayName"`
	AvatarURL      string `json:"avatarUrl,omitempty"`
	Score          int    `json:"score"`
	CorrectAnswers int    `json:"correctAnswers"`
}

// Leaderboard is the ordered top scores list.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Profile is the identity provider's view of a user.
type Profile struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Email       string   `json:"email,omitempty"`
	AvatarURLs  []string `json:"avatar_urls,omitempty"`
	Product     string   `json:"product,omitempty"`
}

// User is a persisted player.
type User struct {
	ID          string
	SpotifyID   string
	DisplayName string
	Email       string
	AvatarURL   string
}

// SessionCompleted is emitted once a session reaches its terminal state.
type SessionCompleted struct {
	SessionID   string     `json:"sessionId"`
	Result      GameResult `json:"result"`
	Saved       bool       `json:"saved"`
	CompletedAt time.Time  `json:"completedAt"`
}
