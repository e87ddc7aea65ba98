// package services defines the [Provider] interface for searchable platforms
//
// YouTube (video), SoundCloud (audio-social) and the Spotify catalog
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/spotclone/internal/models"
	"github.com/desertthunder/spotclone/internal/shared"
)

// Provider searches a third-party platform for the single best match for a query.
type Provider interface {
	// Search returns the top match for query. A nil candidate with a nil error
	// means the platform had no usable result.
	Search(ctx context.Context, query string) (*models.CandidateSource, error)

	// ID identifies the platform.
	ID() models.ProviderID

	// Name returns a display name (e.g., "YouTube", "SoundCloud")
	Name() string
}

// StreamResolver is a [Provider] that can also hand out a transient, directly playable stream URL.
type StreamResolver interface {
	Provider
	StreamURL(ctx context.Context, sourceURL string, quality Quality) (*StreamInfo, error)
}

// Quality selects between the largest and smallest audio rendition.
type Quality string

const (
	QualityHigh Quality = "high"
	QualityLow  Quality = "low"
)

// ParseQuality maps a request value to a [Quality]. Empty selects [QualityHigh].
func ParseQuality(s string) (Quality, error) {
	switch Quality(strings.ToLower(strings.TrimSpace(s))) {
	case "", QualityHigh:
		return QualityHigh, nil
	case QualityLow:
		return QualityLow, nil
	default:
		return "", fmt.Errorf("%w: unknown quality %q", shared.ErrInvalidArgument, s)
	}
}

// StreamInfo describes a transient stream URL returned by a platform.
type StreamInfo struct {
	URL       string
	MimeType  string
	Protocol  string // delivery protocol reported by the source: progressive or hls
	Bitrate   int
	Title     string
	Duration  *int // seconds
	Thumbnail string
}

func intPtr(v int) *int { return &v }
