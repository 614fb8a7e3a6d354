package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"pipeband-quiz-service/internal/domain"
)

// DefaultAPIBaseURL is the Web API root.
const DefaultAPIBaseURL = "https://api.spotify.com/v1"

// APIError is a non-2xx Web API response.
type APIError struct {
	Status  int
	Message string
	Wait    time.Duration
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("spotify api error (%d)", e.Status)
	}
	return fmt.Sprintf("spotify api error (%d): %s", e.Status, e.Message)
}

// RetryAfter is the server's Retry-After hint, zero when absent.
func (e *APIError) RetryAfter() time.Duration { return e.Wait }

// UserMessage is the API's own message, shown when no better text exists.
func (e *APIError) UserMessage() string { return e.Message }

// Unwrap maps statuses onto domain errors. 404 is reported as a missing device since the
// player endpoints are the ones that hit it in practice.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusForbidden:
		return domain.ErrPlaybackForbidden
	case http.StatusNotFound:
		return domain.ErrDeviceNotFound
	case http.StatusTooManyRequests:
		return domain.ErrRateLimited
	}
	return nil
}

// Client talks to the Web API. The http.Client is expected to attach credentials, usually
// one built by an oauth2 token source.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
}

func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
	}
}

type playBody struct {
	URIs       []string `json:"uris"`
	PositionMS int      `json:"position_ms"`
}

// Play starts mediaRef from the beginning on deviceID.
func (c *Client) Play(ctx context.Context, deviceID, mediaRef string) error {
	endpoint := c.baseURL + "/me/player/play?device_id=" + url.QueryEscape(deviceID)
	return c.do(ctx, http.MethodPut, endpoint, playBody{URIs: []string{mediaRef}}, nil)
}

// Pause stops playback on deviceID.
func (c *Client) Pause(ctx context.Context, deviceID string) error {
	endpoint := c.baseURL + "/me/player/pause?device_id=" + url.QueryEscape(deviceID)
	return c.do(ctx, http.MethodPut, endpoint, nil, nil)
}

type meResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Product     string `json:"product"`
	Images      []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// Me fetches the profile of the token's owner.
func (c *Client) Me(ctx context.Context) (domain.Profile, error) {
	var me meResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/me", nil, &me); err != nil {
		return domain.Profile{}, err
	}
	profile := domain.Profile{
		ID:          me.ID,
		DisplayName: me.DisplayName,
		Email:       me.Email,
		Product:     me.Product,
	}
	for _, img := range me.Images {
		profile.AvatarURLs = append(profile.AvatarURLs, img.URL)
	}
	return profile, nil
}

// Artist is a credited artist on a track.
type Artist struct {
	Name string `json:"name"`
}

// Album carries the release date a quiz year is taken from.
type Album struct {
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
}

// Track is the Web API track object, trimmed to what the catalog uses.
type Track struct {
	ID         string   `json:"id"`
	URI        string   `json:"uri"`
	Name       string   `json:"name"`
	PreviewURL string   `json:"preview_url"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
}

// PlaylistItem wraps a playlist entry. Track is nil for removed or local items.
type PlaylistItem struct {
	Track *Track `json:"track"`
}

// Page is one page of playlist items.
type Page struct {
	Items []PlaylistItem `json:"items"`
	Total int            `json:"total"`
	Next  string         `json:"next"`
}

// PlaylistTracks walks every page of a playlist, calling visit for each one.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string, visit func(Page) error) error {
	next := c.baseURL + "/playlists/" + url.PathEscape(playlistID) + "/tracks?limit=100"
	for next != "" {
		var page Page
		if err := c.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return fmt.Errorf("fetch playlist page: %w", err)
		}
		if err := visit(page); err != nil {
			return err
		}
		next = page.Next
	}
	return nil
}

type errorEnvelope struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("spotify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	if raw := resp.Header.Get("Retry-After"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			apiErr.Wait = time.Duration(secs) * time.Second
		}
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var env errorEnvelope
	if json.Unmarshal(data, &env) == nil {
		apiErr.Message = env.Error.Message
	}
	return apiErr
}
