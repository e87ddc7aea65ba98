// YouTube [Provider] implementation
//
// Search goes through ytsearch (scraped results page, no API key) and streams
// are opened with kkdai/youtube.
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotclone/internal/models"
	"github.com/desertthunder/spotclone/internal/shared"
	"github.com/kkdai/youtube/v2"
	"github.com/ppalone/ytsearch"
)

const (
	youtubeWatchURL = "https://www.youtube.com/watch?v="
	youtubeThumbURL = "https://i.ytimg.com/vi/%s/hqdefault.jpg"
)

// SearchHit is one video from a YouTube results page.
type SearchHit struct {
	VideoID string
	Title   string
}

// SearchFunc performs a YouTube search and returns hits in ranking order.
type SearchFunc func(ctx context.Context, query string) ([]SearchHit, error)

// videoClient is the subset of [youtube.Client] used for streaming.
type videoClient interface {
	GetVideoContext(ctx context.Context, id string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
	GetStreamURLContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error)
}

// YouTubeService is the primary (video platform) [Provider].
type YouTubeService struct {
	search SearchFunc
	videos videoClient
	logger *log.Logger
}

// YouTubeOption configures a [YouTubeService].
type YouTubeOption func(*YouTubeService)

// WithSearchFunc replaces the search backend.
func WithSearchFunc(fn SearchFunc) YouTubeOption {
	return func(y *YouTubeService) { y.search = fn }
}

// WithVideoClient replaces the stream client.
func WithVideoClient(c videoClient) YouTubeOption {
	return func(y *YouTubeService) { y.videos = c }
}

// NewYouTubeService creates a YouTube provider sharing httpClient between search and streaming.
func NewYouTubeService(httpClient *http.Client, logger *log.Logger, opts ...YouTubeOption) *YouTubeService {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	y := &YouTubeService{
		search: ytsearchFunc(httpClient),
		videos: &youtube.Client{HTTPClient: httpClient},
		logger: shared.WithPrefix(logger, "youtube"),
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

func ytsearchFunc(httpClient *http.Client) SearchFunc {
	client := ytsearch.NewClient(httpClient)
	return func(ctx context.Context, query string) ([]SearchHit, error) {
		res, err := client.Search(ctx, query)
		if err != nil {
			return nil, err
		}

		hits := make([]SearchHit, 0, len(res.Results))
		for _, r := range res.Results {
			hits = append(hits, SearchHit{VideoID: r.VideoID, Title: r.Title})
		}
		return hits, nil
	}
}

func (y *YouTubeService) ID() models.ProviderID { return models.ProviderVideo }
func (y *YouTubeService) Name() string          { return "YouTube" }

// Search returns the top video for query, or nil when there is none.
func (y *YouTubeService) Search(ctx context.Context, query string) (*models.CandidateSource, error) {
	hits, err := y.search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: youtube search: %v", shared.ErrAPIRequest, err)
	}

	if len(hits) == 0 || strings.TrimSpace(hits[0].VideoID) == "" {
		y.logger.Debug("no video result", "query", query)
		return nil, nil
	}

	top := hits[0]
	return &models.CandidateSource{
		Provider:   models.ProviderVideo,
		ExternalID: top.VideoID,
		Title:      top.Title,
		SourceURL:  youtubeWatchURL + top.VideoID,
		Thumbnail:  fmt.Sprintf(youtubeThumbURL, top.VideoID),
	}, nil
}

// Stream opens the highest bitrate audio-only stream of the video at sourceURL.
func (y *YouTubeService) Stream(ctx context.Context, sourceURL string) (io.ReadCloser, error) {
	video, format, err := y.audioFormat(ctx, sourceURL, QualityHigh)
	if err != nil {
		return nil, err
	}

	rc, size, err := y.videos.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("%w: open stream: %v", shared.ErrAPIRequest, err)
	}

	y.logger.Debug("opened stream", "video", video.ID, "itag", format.ItagNo, "mime", format.MimeType, "size", size)
	return rc, nil
}

// StreamURL resolves a transient, directly playable audio URL.
func (y *YouTubeService) StreamURL(ctx context.Context, sourceURL string, quality Quality) (*StreamInfo, error) {
	video, format, err := y.audioFormat(ctx, sourceURL, quality)
	if err != nil {
		return nil, err
	}

	streamURL, err := y.videos.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("%w: stream url: %v", shared.ErrAPIRequest, err)
	}

	info := &StreamInfo{
		URL:      streamURL,
		MimeType: format.MimeType,
		Bitrate:  bitrateOf(format),
		Title:    video.Title,
	}
	if secs := int(video.Duration.Seconds()); secs > 0 {
		info.Duration = intPtr(secs)
	}
	if n := len(video.Thumbnails); n > 0 {
		info.Thumbnail = video.Thumbnails[n-1].URL
	}
	return info, nil
}

func (y *YouTubeService) audioFormat(ctx context.Context, sourceURL string, quality Quality) (*youtube.Video, *youtube.Format, error) {
	video, err := y.videos.GetVideoContext(ctx, sourceURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: video metadata: %v", shared.ErrAPIRequest, err)
	}

	format, err := pickAudioFormat(video.Formats, quality)
	if err != nil {
		return nil, nil, err
	}
	return video, format, nil
}

// pickAudioFormat picks an audio-only format: the highest bitrate for [QualityHigh],
// the lowest non-zero bitrate for [QualityLow]. MPEG audio is preferred when offered.
// Muxed formats are used only when no audio-only format exists.
func pickAudioFormat(formats youtube.FormatList, quality Quality) (*youtube.Format, error) {
	var mpeg, audioOnly, muxed []*youtube.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 {
			continue
		}
		switch {
		case f.Width != 0 || f.Height != 0:
			muxed = append(muxed, f)
		case strings.HasPrefix(f.MimeType, "audio/mpeg"):
			mpeg = append(mpeg, f)
			audioOnly = append(audioOnly, f)
		default:
			audioOnly = append(audioOnly, f)
		}
	}

	candidates := mpeg
	if len(candidates) == 0 {
		candidates = audioOnly
	}
	if len(candidates) == 0 {
		candidates = muxed
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no audio formats available", shared.ErrNoPlayableFormat)
	}

	best := candidates[0]
	for _, f := range candidates[1:] {
		br, bestBR := bitrateOf(f), bitrateOf(best)
		switch quality {
		case QualityLow:
			if br > 0 && (bestBR == 0 || br < bestBR) {
				best = f
			}
		default:
			if br > bestBR {
				best = f
			}
		}
	}
	return best, nil
}

func bitrateOf(f *youtube.Format) int {
	if f.AverageBitrate > 0 {
		return f.AverageBitrate
	}
	return f.Bitrate
}
