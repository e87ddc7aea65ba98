// SoundCloud [Provider] implementation
//
// Talks to the public api-v2 endpoints with an anonymous client_id. The id is
// taken from config or scraped from the site's asset scripts on first use.
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotclone/internal/models"
	"github.com/desertthunder/spotclone/internal/shared"
	"github.com/tidwall/gjson"
)

const (
	soundcloudSiteURL = "https://soundcloud.com"
	soundcloudAPIURL  = "https://api-v2.soundcloud.com"

	maxAssetScripts = 8
)

var (
	assetScriptPattern = regexp.MustCompile(`<script[^>]+src="([^"]+\.js)"`)
	clientIDPattern    = regexp.MustCompile(`client_id\s*[:=]\s*"([a-zA-Z0-9]{32})"`)
)

// SoundCloudService is the secondary (audio-social platform) [Provider].
type SoundCloudService struct {
	apiURL     string
	siteURL    string
	httpClient *http.Client
	logger     *log.Logger

	mu       sync.Mutex
	clientID string
}

// SoundCloudOption configures a [SoundCloudService].
type SoundCloudOption func(*SoundCloudService)

// WithSoundCloudURLs overrides the api-v2 and site base URLs.
func WithSoundCloudURLs(apiURL, siteURL string) SoundCloudOption {
	return func(s *SoundCloudService) {
		s.apiURL = strings.TrimRight(apiURL, "/")
		s.siteURL = strings.TrimRight(siteURL, "/")
	}
}

// NewSoundCloudService creates a SoundCloud provider. An empty clientID is bootstrapped lazily.
func NewSoundCloudService(clientID string, httpClient *http.Client, logger *log.Logger, opts ...SoundCloudOption) *SoundCloudService {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	s := &SoundCloudService{
		apiURL:     soundcloudAPIURL,
		siteURL:    soundcloudSiteURL,
		httpClient: httpClient,
		logger:     shared.WithPrefix(logger, "soundcloud"),
		clientID:   clientID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SoundCloudService) ID() models.ProviderID { return models.ProviderAudioSocial }
func (s *SoundCloudService) Name() string          { return "SoundCloud" }

// ClientID returns the client id, bootstrapping it on first use.
// Bootstrap failures are logged and yield an empty id.
func (s *SoundCloudService) ClientID(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clientID != "" {
		return s.clientID
	}

	id, err := s.scrapeClientID(ctx)
	if err != nil {
		s.logger.Debug("client_id bootstrap failed", "error", err)
		return ""
	}

	s.clientID = id
	s.logger.Debug("client_id bootstrapped")
	return id
}

func (s *SoundCloudService) scrapeClientID(ctx context.Context) (string, error) {
	page, err := s.get(ctx, s.siteURL)
	if err != nil {
		return "", err
	}

	matches := assetScriptPattern.FindAllSubmatch(page, -1)
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no asset scripts on %s", shared.ErrAPIRequest, s.siteURL)
	}

	// The id usually lives in one of the last bundles.
	if len(matches) > maxAssetScripts {
		matches = matches[len(matches)-maxAssetScripts:]
	}
	for i := len(matches) - 1; i >= 0; i-- {
		script, err := s.get(ctx, string(matches[i][1]))
		if err != nil {
			continue
		}
		if m := clientIDPattern.FindSubmatch(script); m != nil {
			return string(m[1]), nil
		}
	}

	return "", fmt.Errorf("%w: client_id not found in asset scripts", shared.ErrAPIRequest)
}

// Search returns the top track for query, or nil when there is none.
func (s *SoundCloudService) Search(ctx context.Context, query string) (*models.CandidateSource, error) {
	params := url.Values{"q": {query}, "limit": {"1"}}
	body, err := s.api(ctx, "/search/tracks", params)
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: soundcloud search returned invalid JSON", shared.ErrAPIRequest)
	}

	track := gjson.GetBytes(body, "collection.0")
	permalink := track.Get("permalink_url").String()
	if !track.Exists() || permalink == "" {
		s.logger.Debug("no track result", "query", query)
		return nil, nil
	}

	candidate := &models.CandidateSource{
		Provider:   models.ProviderAudioSocial,
		ExternalID: track.Get("id").String(),
		Title:      track.Get("title").String(),
		SourceURL:  permalink,
		Thumbnail:  track.Get("artwork_url").String(),
	}
	if ms := track.Get("duration").Int(); ms > 0 {
		candidate.Duration = intPtr(int(ms / 1000))
	}
	return candidate, nil
}

// Stream opens the progressive audio stream of the track at sourceURL.
// Tracks that only offer HLS playlists fail with [shared.ErrNoPlayableFormat].
func (s *SoundCloudService) Stream(ctx context.Context, sourceURL string) (io.ReadCloser, error) {
	info, err := s.StreamURL(ctx, sourceURL, QualityHigh)
	if err != nil {
		return nil, err
	}
	if info.Protocol != protocolProgressive {
		return nil, fmt.Errorf("%w: %s offers no progressive stream (got %q)", shared.ErrNoPlayableFormat, sourceURL, info.Protocol)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: media request failed: %v", shared.ErrAPIRequest, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: media request status %d", shared.ErrAPIRequest, resp.StatusCode)
	}
	return resp.Body, nil
}

// StreamURL resolves a transient media URL for the track at sourceURL.
//
// Progressive transcodings are preferred over HLS. Among several, [QualityLow]
// picks the last listed and [QualityHigh] the first.
func (s *SoundCloudService) StreamURL(ctx context.Context, sourceURL string, quality Quality) (*StreamInfo, error) {
	body, err := s.api(ctx, "/resolve", url.Values{"url": {sourceURL}})
	if err != nil {
		return nil, err
	}

	track := gjson.ParseBytes(body)
	transcoding, ok := pickTranscoding(track.Get("media.transcodings").Array(), quality)
	if !ok {
		return nil, fmt.Errorf("%w: no transcodings for %s", shared.ErrNoPlayableFormat, sourceURL)
	}

	params := url.Values{}
	if auth := track.Get("track_authorization").String(); auth != "" {
		params.Set("track_authorization", auth)
	}
	media, err := s.fetchJSON(ctx, transcoding.Get("url").String(), params)
	if err != nil {
		return nil, err
	}

	streamURL := gjson.GetBytes(media, "url").String()
	if streamURL == "" {
		return nil, fmt.Errorf("%w: transcoding returned no url", shared.ErrNoPlayableFormat)
	}

	info := &StreamInfo{
		URL:       streamURL,
		MimeType:  transcoding.Get("format.mime_type").String(),
		Protocol:  transcoding.Get("format.protocol").String(),
		Title:     track.Get("title").String(),
		Thumbnail: track.Get("artwork_url").String(),
	}
	if ms := track.Get("duration").Int(); ms > 0 {
		info.Duration = intPtr(int(ms / 1000))
	}
	return info, nil
}

const protocolProgressive = "progressive"

func pickTranscoding(all []gjson.Result, quality Quality) (gjson.Result, bool) {
	var progressive, other []gjson.Result
	for _, t := range all {
		if t.Get("url").String() == "" {
			continue
		}
		if t.Get("format.protocol").String() == protocolProgressive {
			progressive = append(progressive, t)
		} else {
			other = append(other, t)
		}
	}

	pool := progressive
	if len(pool) == 0 {
		pool = other
	}
	if len(pool) == 0 {
		return gjson.Result{}, false
	}
	if quality == QualityLow {
		return pool[len(pool)-1], true
	}
	return pool[0], true
}

// api calls an api-v2 endpoint with the client id attached.
func (s *SoundCloudService) api(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	return s.fetchJSON(ctx, s.apiURL+endpoint, params)
}

func (s *SoundCloudService) fetchJSON(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: bad url %q: %v", shared.ErrAPIRequest, rawURL, err)
	}

	q := u.Query()
	for k, vs := range params {
		q[k] = vs
	}
	if id := s.ClientID(ctx); id != "" {
		q.Set("client_id", id)
	}
	u.RawQuery = q.Encode()

	return s.get(ctx, u.String())
}

func (s *SoundCloudService) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/html")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: soundcloud status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
