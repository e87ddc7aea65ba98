package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spotclone/internal/models"
	"github.com/desertthunder/spotclone/internal/shared"
	"github.com/kkdai/youtube/v2"
)

type fakeVideoClient struct {
	video     *youtube.Video
	err       error
	streamErr error
	gotFormat *youtube.Format
	gotID     string
}

func (f *fakeVideoClient) GetVideoContext(ctx context.Context, id string) (*youtube.Video, error) {
	f.gotID = id
	return f.video, f.err
}

func (f *fakeVideoClient) GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error) {
	f.gotFormat = format
	if f.streamErr != nil {
		return nil, 0, f.streamErr
	}
	return io.NopCloser(strings.NewReader("audio")), 5, nil
}

func (f *fakeVideoClient) GetStreamURLContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error) {
	f.gotFormat = format
	if f.streamErr != nil {
		return "", f.streamErr
	}
	return "https://rr1.googlevideo.com/videoplayback?itag=" + format.MimeType, nil
}

func testVideo() *youtube.Video {
	return &youtube.Video{
		ID:       "abc123",
		Title:    "Imagine Dragons - Believer",
		Duration: 204 * time.Second,
		Thumbnails: youtube.Thumbnails{
			{URL: "https://i.ytimg.com/small.jpg"},
			{URL: "https://i.ytimg.com/large.jpg"},
		},
		Formats: youtube.FormatList{
			{ItagNo: 18, MimeType: "video/mp4", AudioChannels: 2, Width: 640, Height: 360, Bitrate: 500000},
			{ItagNo: 140, MimeType: "audio/mp4", AudioChannels: 2, Bitrate: 130000, AverageBitrate: 129000},
			{ItagNo: 251, MimeType: "audio/webm", AudioChannels: 2, Bitrate: 160000},
			{ItagNo: 249, MimeType: "audio/webm; low", AudioChannels: 2, Bitrate: 50000},
			{ItagNo: 137, MimeType: "video/mp4; no audio", Width: 1920, Height: 1080, Bitrate: 4000000},
		},
	}
}

func TestYouTubeService(t *testing.T) {
	t.Run("Search", func(t *testing.T) {
		t.Run("top result", func(t *testing.T) {
			var gotQuery string
			search := func(ctx context.Context, q string) ([]SearchHit, error) {
				gotQuery = q
				return []SearchHit{{VideoID: "abc123", Title: "Believer"}, {VideoID: "zzz", Title: "Other"}}, nil
			}
			y := NewYouTubeService(nil, nil, WithSearchFunc(search))

			c, err := y.Search(context.Background(), "Believer Imagine Dragons")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotQuery != "Believer Imagine Dragons" {
				t.Errorf("query should be passed verbatim, got %q", gotQuery)
			}
			if c.Provider != models.ProviderVideo || c.ExternalID != "abc123" || c.Title != "Believer" {
				t.Errorf("unexpected candidate %+v", c)
			}
			if c.SourceURL != "https://www.youtube.com/watch?v=abc123" {
				t.Errorf("unexpected source URL %s", c.SourceURL)
			}
			if !strings.Contains(c.Thumbnail, "abc123") {
				t.Errorf("unexpected thumbnail %s", c.Thumbnail)
			}
		})

		t.Run("no results", func(t *testing.T) {
			y := NewYouTubeService(nil, nil, WithSearchFunc(func(context.Context, string) ([]SearchHit, error) {
				return nil, nil
			}))
			c, err := y.Search(context.Background(), "nothing")
			if c != nil || err != nil {
				t.Errorf("expected nil, nil; got %+v, %v", c, err)
			}
		})

		t.Run("missing video id", func(t *testing.T) {
			y := NewYouTubeService(nil, nil, WithSearchFunc(func(context.Context, string) ([]SearchHit, error) {
				return []SearchHit{{Title: "channel, not a video"}}, nil
			}))
			c, err := y.Search(context.Background(), "x")
			if c != nil || err != nil {
				t.Errorf("expected nil, nil; got %+v, %v", c, err)
			}
		})

		t.Run("transport error", func(t *testing.T) {
			y := NewYouTubeService(nil, nil, WithSearchFunc(func(context.Context, string) ([]SearchHit, error) {
				return nil, errors.New("connection reset")
			}))
			if _, err := y.Search(context.Background(), "x"); !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})
	})

	t.Run("Stream", func(t *testing.T) {
		fake := &fakeVideoClient{video: testVideo()}
		y := NewYouTubeService(nil, nil, WithVideoClient(fake))

		rc, err := y.Stream(context.Background(), "https://www.youtube.com/watch?v=abc123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer rc.Close()

		if fake.gotID != "https://www.youtube.com/watch?v=abc123" {
			t.Errorf("unexpected video id %s", fake.gotID)
		}
		if fake.gotFormat.ItagNo != 251 {
			t.Errorf("expected highest bitrate audio-only itag 251, got %d", fake.gotFormat.ItagNo)
		}
	})

	t.Run("Stream metadata error", func(t *testing.T) {
		y := NewYouTubeService(nil, nil, WithVideoClient(&fakeVideoClient{err: errors.New("login required")}))
		if _, err := y.Stream(context.Background(), "u"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("StreamURL", func(t *testing.T) {
		fake := &fakeVideoClient{video: testVideo()}
		y := NewYouTubeService(nil, nil, WithVideoClient(fake))

		info, err := y.StreamURL(context.Background(), "abc123", QualityLow)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fake.gotFormat.ItagNo != 249 {
			t.Errorf("expected lowest bitrate itag 249, got %d", fake.gotFormat.ItagNo)
		}
		if info.Duration == nil || *info.Duration != 204 {
			t.Errorf("expected duration 204, got %v", info.Duration)
		}
		if info.Thumbnail != "https://i.ytimg.com/large.jpg" {
			t.Errorf("expected the largest thumbnail, got %s", info.Thumbnail)
		}
		if info.Title != "Imagine Dragons - Believer" || info.URL == "" {
			t.Errorf("unexpected info %+v", info)
		}
	})
}

func TestPickAudioFormat(t *testing.T) {
	t.Run("prefers audio only", func(t *testing.T) {
		f, err := pickAudioFormat(testVideo().Formats, QualityHigh)
		if err != nil || f.ItagNo != 251 {
			t.Errorf("expected itag 251, got %+v, %v", f, err)
		}
	})

	t.Run("average bitrate wins over peak", func(t *testing.T) {
		formats := youtube.FormatList{
			{ItagNo: 1, AudioChannels: 2, Bitrate: 200000, AverageBitrate: 100000},
			{ItagNo: 2, AudioChannels: 2, Bitrate: 150000},
		}
		f, _ := pickAudioFormat(formats, QualityHigh)
		if f.ItagNo != 2 {
			t.Errorf("expected itag 2, got %d", f.ItagNo)
		}
	})

	t.Run("mpeg audio preferred", func(t *testing.T) {
		formats := youtube.FormatList{
			{ItagNo: 251, AudioChannels: 2, MimeType: `audio/webm; codecs="opus"`, Bitrate: 160000},
			{ItagNo: 9, AudioChannels: 2, MimeType: "audio/mpeg", Bitrate: 128000},
		}
		f, err := pickAudioFormat(formats, QualityHigh)
		if err != nil || f.ItagNo != 9 {
			t.Errorf("expected mpeg itag 9, got %+v, %v", f, err)
		}
	})

	t.Run("falls back to muxed", func(t *testing.T) {
		formats := youtube.FormatList{
			{ItagNo: 18, AudioChannels: 2, Width: 640, Height: 360, Bitrate: 500000},
			{ItagNo: 137, Width: 1920, Height: 1080},
		}
		f, err := pickAudioFormat(formats, QualityHigh)
		if err != nil || f.ItagNo != 18 {
			t.Errorf("expected muxed itag 18, got %+v, %v", f, err)
		}
	})

	t.Run("no audio", func(t *testing.T) {
		formats := youtube.FormatList{{ItagNo: 137, Width: 1920, Height: 1080}}
		if _, err := pickAudioFormat(formats, QualityHigh); !errors.Is(err, shared.ErrNoPlayableFormat) {
			t.Errorf("expected ErrNoPlayableFormat, got %v", err)
		}
	})
}

func TestParseQuality(t *testing.T) {
	tests := map[string]Quality{"": QualityHigh, "HIGH": QualityHigh, "low": QualityLow}
	for in, want := range tests {
		if got, err := ParseQuality(in); err != nil || got != want {
			t.Errorf("ParseQuality(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseQuality("lossless"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}
