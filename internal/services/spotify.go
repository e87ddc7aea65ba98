// Spotify catalog lookups
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/spotclone/internal/models"
	"github.com/desertthunder/spotclone/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	defaultCatalogTTL = 5 * time.Minute
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	Images      []SpotifyImage `json:"images"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	ExternalIDs externalIDs     `json:"external_ids"`
	URI         string          `json:"uri"`
}

// DownloadRequest converts the track into a download request using its first artist.
func (t SpotifyTrack) DownloadRequest() models.DownloadRequest {
	req := models.DownloadRequest{TrackName: t.Name}
	if len(t.Artists) > 0 {
		req.ArtistName = t.Artists[0].Name
	}
	return req
}

// SpotifyService looks up catalog tracks with an app-only (client credentials) token.
//
// Responses are kept in a short-lived in-memory cache; audio is never cached.
type SpotifyService struct {
	config     *clientcredentials.Config
	baseURL    string
	httpClient *http.Client
	cache      *catalogCache

	once sync.Once
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithSpotifyURLs overrides the token endpoint and API base URL.
func WithSpotifyURLs(tokenURL, baseURL string) SpotifyOption {
	return func(s *SpotifyService) {
		s.config.TokenURL = tokenURL
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithCatalogTTL sets how long lookups stay cached.
func WithCatalogTTL(ttl time.Duration) SpotifyOption {
	return func(s *SpotifyService) { s.cache = newCatalogCache(ttl) }
}

// NewSpotifyService creates a Spotify catalog client from app credentials.
func NewSpotifyService(clientID, clientSecret string, opts ...SpotifyOption) (*SpotifyService, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	s := &SpotifyService{
		config: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     spotifyTokenURL,
		},
		baseURL: spotifyBaseURL,
		cache:   newCatalogCache(defaultCatalogTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Authenticate builds the token-refreshing HTTP client. It runs once on first use.
func (s *SpotifyService) Authenticate(ctx context.Context) {
	s.once.Do(func() {
		s.httpClient = s.config.Client(context.WithoutCancel(ctx))
	})
}

// doRequest performs an authenticated GET against the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	s.Authenticate(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		}
		return fmt.Errorf("%w: request failed: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, endpoint)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify rejected the token", shared.ErrAuthFailed)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify API error: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Track retrieves a single track by ID.
func (s *SpotifyService) Track(ctx context.Context, trackID string) (*SpotifyTrack, error) {
	trackID = strings.TrimSpace(trackID)
	if trackID == "" {
		return nil, fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	key := "track:" + trackID
	if t, ok := s.cache.get(key); ok {
		return t, nil
	}

	var track SpotifyTrack
	if err := s.doRequest(ctx, "/tracks/"+url.PathEscape(trackID), &track); err != nil {
		return nil, err
	}

	s.cache.put(key, &track)
	return &track, nil
}

// SearchTrack returns the top catalog match for query.
func (s *SpotifyService) SearchTrack(ctx context.Context, query string) (*SpotifyTrack, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	key := "search:" + strings.ToLower(query)
	if t, ok := s.cache.get(key); ok {
		return t, nil
	}

	params := url.Values{"q": {query}, "type": {"track"}, "limit": {"1"}}
	var response struct {
		Tracks struct {
			Items []SpotifyTrack `json:"items"`
		} `json:"tracks"`
	}
	if err := s.doRequest(ctx, "/search?"+params.Encode(), &response); err != nil {
		return nil, err
	}

	if len(response.Tracks.Items) == 0 {
		return nil, fmt.Errorf("%w: no spotify match for %q", shared.ErrTrackNotFound, query)
	}

	track := &response.Tracks.Items[0]
	s.cache.put(key, track)
	return track, nil
}

type cacheEntry struct {
	track   *SpotifyTrack
	expires time.Time
}

// catalogCache is a TTL map of catalog lookups.
type catalogCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

func newCatalogCache(ttl time.Duration) *catalogCache {
	return &catalogCache{ttl: ttl, entries: make(map[string]cacheEntry), now: time.Now}
}

func (c *catalogCache) get(key string) (*SpotifyTrack, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.track, true
}

func (c *catalogCache) put(key string, t *SpotifyTrack) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{track: t, expires: c.now().Add(c.ttl)}
}
