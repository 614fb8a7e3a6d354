package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeband-quiz-service/internal/domain"
)

type fakeImporter struct {
	n        int
	err      error
	playlist string
}

func (f *fakeImporter) Import(_ context.Context, playlistID string) (int, error) {
	f.playlist = playlistID
	return f.n, f.err
}

func callImport(h *AdminHandler, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ImportPlaylist(rec, req)
	return rec
}

func TestImportPlaylistRequiresToken(t *testing.T) {
	imp := &fakeImporter{n: 3}
	h := NewAdminHandler(imp, "default-list", "admin-secret", nil)

	assert.Equal(t, http.StatusUnauthorized, callImport(h, "/api/admin/import-playlist", "").Code)
	assert.Equal(t, http.StatusUnauthorized, callImport(h, "/api/admin/import-playlist", "wrong").Code)
	assert.Empty(t, imp.playlist)

	open := NewAdminHandler(imp, "default-list", "", nil)
	assert.Equal(t, http.StatusUnauthorized, callImport(open, "/api/admin/import-playlist", "").Code)
}

func TestImportPlaylist(t *testing.T) {
	imp := &fakeImporter{n: 42}
	var invalidated int
	h := NewAdminHandler(imp, "default-list", "admin-secret", func(context.Context) { invalidated++ })

	rec := callImport(h, "/api/admin/import-playlist", "admin-secret")
	require.Equal(t, http.StatusOK, rec.Code)
	var out importResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, importResponse{Success: true, Imported: 42, Playlist: "default-list"}, out)
	assert.Equal(t, 1, invalidated)

	rec = callImport(h, "/api/admin/import-playlist?playlist=other", "admin-secret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "other", imp.playlist)
	assert.Equal(t, 2, invalidated)
}

func TestImportPlaylistFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "empty playlist", err: domain.ErrNoTracks, want: http.StatusUnprocessableEntity},
		{name: "upstream error", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var invalidated bool
			h := NewAdminHandler(&fakeImporter{err: tt.err}, "list", "admin-secret", func(context.Context) { invalidated = true })
			rec := callImport(h, "/api/admin/import-playlist", "admin-secret")
			assert.Equal(t, tt.want, rec.Code)
			assert.False(t, invalidated)
		})
	}
}
