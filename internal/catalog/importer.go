package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/spotify"

	"pipeband-quiz-service/internal/domain"
	spotifyapi "pipeband-quiz-service/internal/spotify"
)

const (
	unknownBand = "Unknown Band"
	defaultYear = 2000
)

// PlaylistSource pages through a playlist.
type PlaylistSource interface {
	PlaylistTracks(ctx context.Context, playlistID string, visit func(spotifyapi.Page) error) error
}

// TrackWriter replaces the whole track catalog.
type TrackWriter interface {
	ReplaceTracks(ctx context.Context, tracks []domain.Track) error
}

// Importer loads a playlist into the track catalog.
type Importer struct {
	source     PlaylistSource
	store      TrackWriter
	cleaner    *Cleaner
	onProgress func(done, total int)
}

func NewImporter(source PlaylistSource, store TrackWriter) *Importer {
	return &Importer{source: source, store: store, cleaner: NewCleaner()}
}

// OnProgress registers a callback fired after every page.
func (i *Importer) OnProgress(fn func(done, total int)) {
	i.onProgress = fn
}

// Import fetches every playlist item, maps it to a track, and replaces the catalog.
func (i *Importer) Import(ctx context.Context, playlistID string) (int, error) {
	var (
		tracks []domain.Track
		seen   int
	)
	err := i.source.PlaylistTracks(ctx, playlistID, func(page spotifyapi.Page) error {
		for _, item := range page.Items {
			seen++
			if item.Track == nil || item.Track.ID == "" {
				continue
			}
			tracks = append(tracks, i.toTrack(*item.Track))
		}
		if i.onProgress != nil {
			i.onProgress(seen, page.Total)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("import playlist %s: %w", playlistID, err)
	}
	if len(tracks) == 0 {
		return 0, domain.ErrNoTracks
	}
	if err := i.store.ReplaceTracks(ctx, tracks); err != nil {
		return 0, fmt.Errorf("store tracks: %w", err)
	}
	log.Info().Str("playlist_id", playlistID).Int("tracks", len(tracks)).Msg("playlist imported")
	return len(tracks), nil
}

func (i *Importer) toTrack(t spotifyapi.Track) domain.Track {
	band := unknownBand
	if len(t.Artists) > 0 && t.Artists[0].Name != "" {
		band = t.Artists[0].Name
	}
	ref := t.URI
	if ref == "" {
		ref = "spotify:track:" + t.ID
	}
	return domain.Track{
		ID:         t.ID,
		MediaRef:   ref,
		Band:       band,
		Year:       releaseYear(t.Album.ReleaseDate),
		Title:      i.cleaner.CleanTitle(t.Name),
		Album:      t.Album.Name,
		PreviewURL: t.PreviewURL,
	}
}

func releaseYear(date string) int {
	if len(date) < 4 {
		return defaultYear
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year <= 0 {
		return defaultYear
	}
	return year
}

// AppClient returns a Web API client authorized with the app's own client credentials.
func AppClient(ctx context.Context, clientID, clientSecret, tokenURL, apiBaseURL string) *spotifyapi.Client {
	if tokenURL == "" {
		tokenURL = spotify.Endpoint.TokenURL
	}
	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	return spotifyapi.NewClient(cc.Client(ctx), apiBaseURL)
}
