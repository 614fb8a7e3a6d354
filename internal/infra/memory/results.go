package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pipeband-quiz-service/internal/domain"
)

const anonymous = "Anonymous"

type gameRecord struct {
	id        string
	result    domain.GameResult
	createdAt time.Time
}

// ResultStore keeps users and finished sessions in memory. TopScores mirrors the
// top_scores view: one row per player with their best score.
type ResultStore struct {
	mu      sync.RWMutex
	now     func() time.Time
	users   map[string]domain.User
	bySpID  map[string]string
	records []gameRecord
}

func NewResultStore() *ResultStore {
	return &ResultStore{
		now:    time.Now,
		users:  make(map[string]domain.User),
		bySpID: make(map[string]string),
	}
}

func (s *ResultStore) UpsertUser(_ context.Context, u domain.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.bySpID[u.SpotifyID]; ok {
		u.ID = id
	} else {
		u.ID = uuid.NewString()
		s.bySpID[u.SpotifyID] = u.ID
	}
	s.users[u.ID] = u
	return u.ID, nil
}

func (s *ResultStore) CreateGameSession(_ context.Context, r domain.GameResult) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.records = append(s.records, gameRecord{id: id, result: r, createdAt: s.now()})
	return id, nil
}

func (s *ResultStore) TopScores(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best := make(map[string]gameRecord)
	for _, rec := range s.records {
		cur, ok := best[rec.result.UserID]
		if !ok || rec.result.Score > cur.result.Score {
			best[rec.result.UserID] = rec
		}
	}

	entries := make([]domain.LeaderboardEntry, 0, len(best))
	for userID, rec := range best {
		u := s.users[userID]
		name := u.DisplayName
		if name == "" {
			name = anonymous
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserID:         userID,
			DisplayName:    name,
			AvatarURL:      u.AvatarURL,
			Score:          rec.result.Score,
			CorrectAnswers: rec.result.CorrectAnswers,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return best[entries[i].UserID].createdAt.Before(best[entries[j].UserID].createdAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Results returns every stored result in insertion order.
func (s *ResultStore) Results() []domain.GameResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.GameResult, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.result)
	}
	return out
}
