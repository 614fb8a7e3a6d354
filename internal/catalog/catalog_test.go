package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeband-quiz-service/internal/domain"
	spotifyapi "pipeband-quiz-service/internal/spotify"
)

func TestCleanTitle(t *testing.T) {
	c := NewCleaner()
	tests := map[string]string{
		"Highland Cathedral - Remastered 2011":             "Highland Cathedral",
		"Amazing Grace (Live)":                             "Amazing Grace",
		"The Rowan Tree [2004 Version]":                    "The Rowan Tree",
		"Mull of Kintyre (Medley with Scotland the Brave)": "Mull of Kintyre (Medley with Scotland the Brave)",
		"Lament - For the Children":                        "Lament - For the Children",
		"  Flower of Scotland  ":                           "Flower of Scotland",
		"Broken (Live":                                     "Broken (Live",
	}
	for in, want := range tests {
		assert.Equal(t, want, c.CleanTitle(in), in)
	}
}

type pagedSource struct {
	pages []spotifyapi.Page
	err   error
}

func (s pagedSource) PlaylistTracks(_ context.Context, _ string, visit func(spotifyapi.Page) error) error {
	if s.err != nil {
		return s.err
	}
	for _, p := range s.pages {
		if err := visit(p); err != nil {
			return err
		}
	}
	return nil
}

type recordingWriter struct {
	tracks []domain.Track
}

func (w *recordingWriter) ReplaceTracks(_ context.Context, tracks []domain.Track) error {
	w.tracks = tracks
	return nil
}

func TestImporterMapsTracks(t *testing.T) {
	source := pagedSource{pages: []spotifyapi.Page{
		{Total: 3, Items: []spotifyapi.PlaylistItem{
			{Track: &spotifyapi.Track{
				ID:      "a",
				URI:     "spotify:track:a",
				Name:    "Balmoral - Remastered 2011",
				Artists: []spotifyapi.Artist{{Name: "Field Marshal Montgomery"}, {Name: "Guest"}},
				Album:   spotifyapi.Album{Name: "Live", ReleaseDate: "1996-08-01"},
			}},
			{Track: nil},
		}},
		{Total: 3, Items: []spotifyapi.PlaylistItem{
			{Track: &spotifyapi.Track{ID: "b", Name: "Untitled", Album: spotifyapi.Album{ReleaseDate: "n/a"}}},
		}},
	}}
	writer := &recordingWriter{}
	imp := NewImporter(source, writer)

	var progress [][2]int
	imp.OnProgress(func(done, total int) { progress = append(progress, [2]int{done, total}) })

	n, err := imp.Import(context.Background(), "pl")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, [][2]int{{2, 3}, {3, 3}}, progress)

	require.Len(t, writer.tracks, 2)
	assert.Equal(t, domain.Track{
		ID: "a", MediaRef: "spotify:track:a", Band: "Field Marshal Montgomery", Year: 1996,
		Title: "Balmoral", Album: "Live",
	}, writer.tracks[0])
	assert.Equal(t, unknownBand, writer.tracks[1].Band)
	assert.Equal(t, defaultYear, writer.tracks[1].Year)
	assert.Equal(t, "spotify:track:b", writer.tracks[1].MediaRef)
}

func TestImporterEmptyPlaylist(t *testing.T) {
	_, err := NewImporter(pagedSource{}, &recordingWriter{}).Import(context.Background(), "pl")
	assert.ErrorIs(t, err, domain.ErrNoTracks)

	boom := errors.New("boom")
	_, err = NewImporter(pagedSource{err: boom}, &recordingWriter{}).Import(context.Background(), "pl")
	assert.ErrorIs(t, err, boom)
}

func TestAppClientUsesClientCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"app-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/playlists/pl/tracks", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer app-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"total":1,"items":[{"track":{"id":"x","name":"X","artists":[{"name":"Boghall"}],"album":{"release_date":"2019"}}}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := AppClient(context.Background(), "id", "secret", srv.URL+"/token", srv.URL+"/v1")
	writer := &recordingWriter{}
	n, err := NewImporter(client, writer).Import(context.Background(), "pl")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "Boghall", writer.tracks[0].Band)
	assert.Equal(t, 2019, writer.tracks[0].Year)
}
