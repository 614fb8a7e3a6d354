package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeband-quiz-service/internal/domain"
)

func (s *testServer) do(t *testing.T, method, path, session string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	if session != "" {
		req.Header.Set("Authorization", "Bearer "+session)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func TestSaveGame(t *testing.T) {
	srv := newTestServer(t)
	good := domain.GameResult{Score: 225, CorrectAnswers: 2, TotalQuestions: 3, TimeTakenSeconds: 61}

	resp, _ := srv.do(t, http.MethodPost, "/api/game/save", "", good)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	session := srv.session(t, "user-1")
	tests := []struct {
		name string
		body any
		want int
	}{
		{name: "not json", body: "nope", want: http.StatusBadRequest},
		{name: "more correct than total", body: domain.GameResult{Score: 10, CorrectAnswers: 4, TotalQuestions: 3}, want: http.StatusBadRequest},
		{name: "no questions", body: domain.GameResult{}, want: http.StatusBadRequest},
		{name: "valid", body: good, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := srv.do(t, http.MethodPost, "/api/game/save", session, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode, string(body))
		})
	}

	saved := srv.results.Results()
	require.Len(t, saved, 1)
	assert.Equal(t, "user-1", saved[0].UserID)
	assert.Equal(t, 225, saved[0].Score)
}

func TestSaveGameIgnoresClientUserID(t *testing.T) {
	srv := newTestServer(t)
	body := map[string]any{"userId": "someone-else", "score": 50, "correctAnswers": 1, "totalQuestions": 1, "timeTakenSeconds": 3}
	resp, raw := srv.do(t, http.MethodPost, "/api/game/save", srv.session(t, "user-1"), body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out saveResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.True(t, out.Success)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "user-1", srv.results.Results()[0].UserID)
}

func TestLeaderboardEndpoint(t *testing.T) {
	srv := newTestServer(t)
	for _, score := range []int{100, 300, 200} {
		resp, _ := srv.do(t, http.MethodPost, "/api/game/save", srv.session(t, "user-1"),
			domain.GameResult{Score: score, CorrectAnswers: 1, TotalQuestions: 1})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ := srv.do(t, http.MethodPost, "/api/game/save", srv.session(t, "user-2"),
		domain.GameResult{Score: 250, CorrectAnswers: 1, TotalQuestions: 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := srv.do(t, http.MethodGet, "/api/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var lb domain.Leaderboard
	require.NoError(t, json.Unmarshal(raw, &lb))
	require.Len(t, lb.Entries, 2)
	assert.Equal(t, "user-1", lb.Entries[0].UserID)
	assert.Equal(t, 300, lb.Entries[0].Score)
	assert.Equal(t, 250, lb.Entries[1].Score)

	resp, raw = srv.do(t, http.MethodGet, "/api/leaderboard?limit=1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &lb))
	assert.Len(t, lb.Entries, 1)

	for _, bad := range []string{"0", "-3", "abc", "501"} {
		resp, _ = srv.do(t, http.MethodGet, "/api/leaderboard?limit="+bad, "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, bad)
	}
}

func TestEmptyLeaderboardIsAnArray(t *testing.T) {
	srv := newTestServer(t)
	resp, raw := srv.do(t, http.MethodGet, "/api/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `"entries":[]`)
}

func TestResultMessageEndpoint(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		query    string
		status   int
		message  string
		duration string
	}{
		{query: "correct=7&total=10&seconds=95", status: http.StatusOK, message: domain.ResultMessage(7, 10), duration: "1 min 35 sec"},
		{query: "correct=5&total=10", status: http.StatusOK, message: domain.ResultMessage(5, 10)},
		{query: "correct=0&total=10&seconds=12", status: http.StatusOK, message: domain.ResultMessage(0, 10), duration: "12 sec"},
		{query: "correct=11&total=10", status: http.StatusBadRequest},
		{query: "correct=1&total=0", status: http.StatusBadRequest},
		{query: "total=10", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, raw := srv.do(t, http.MethodGet, "/api/results/message?"+tt.query, "", nil)
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.status != http.StatusOK {
				return
			}
			var out messageResponse
			require.NoError(t, json.Unmarshal(raw, &out))
			assert.Equal(t, tt.message, out.Message)
			assert.Equal(t, tt.duration, out.Duration)
		})
	}
}

func TestHealthAndCORS(t *testing.T) {
	srv := newTestServer(t)
	resp, raw := srv.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(raw))

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/leaderboard", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://quiz.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	pre, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer pre.Body.Close()
	assert.NotEmpty(t, pre.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", pre.Header.Get("Access-Control-Allow-Credentials"))
}
