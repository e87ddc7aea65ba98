package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/spotclone/internal/shared"
)

// MinViableBytes is the smallest payload accepted as real audio.
// Anything shorter is treated as an error page or a truncated stream.
const MinViableBytes = 10_000

// ContentTypeMPEG is the fixed content type of every successful download.
const ContentTypeMPEG = "audio/mpeg"

// Provenance tags reported in [DownloadResult.Source].
const (
	SourceYouTubeYTDLP  = "youtube-ytdlp"
	SourceYouTubeStream = "youtube-playdl"
	SourceSoundCloud    = "soundcloud"
)

// ProviderID identifies a searchable third-party platform.
type ProviderID string

const (
	ProviderVideo       ProviderID = "youtube"
	ProviderAudioSocial ProviderID = "soundcloud"
)

// ParseProviderID maps a platform name to a [ProviderID]. An empty name selects the video platform.
func ParseProviderID(s string) (ProviderID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ProviderVideo):
		return ProviderVideo, nil
	case string(ProviderAudioSocial):
		return ProviderAudioSocial, nil
	default:
		return "", fmt.Errorf("%w: unknown platform %q", shared.ErrInvalidArgument, s)
	}
}

// DownloadRequest is the caller's input. TrackName is required.
type DownloadRequest struct {
	TrackName  string `json:"trackName"`
	ArtistName string `json:"artistName,omitempty"`
}

// Validate reports [shared.ErrMissingArgument] when the track name is blank.
func (r DownloadRequest) Validate() error {
	if strings.TrimSpace(r.TrackName) == "" {
		return fmt.Errorf("%w: trackName is required", shared.ErrMissingArgument)
	}
	return nil
}

// SearchQuery is the text sent to every provider: the track name, followed by the artist when present.
func (r DownloadRequest) SearchQuery() string {
	track := strings.TrimSpace(r.TrackName)
	if artist := strings.TrimSpace(r.ArtistName); artist != "" {
		return track + " " + artist
	}
	return track
}

// Filename is the sanitized attachment name for this request.
func (r DownloadRequest) Filename() string {
	return shared.SanitizeFilename(r.TrackName, r.ArtistName)
}

// CandidateSource is a provider's best match for a query.
type CandidateSource struct {
	Provider   ProviderID `json:"provider"`
	ExternalID string     `json:"externalId"`
	Title      string     `json:"title"`
	SourceURL  string     `json:"sourceUrl"`
	Duration   *int       `json:"duration,omitempty"` // seconds
	Thumbnail  string     `json:"thumbnail,omitempty"`
}

// ExtractionOutcome is the result of a single strategy attempt.
type ExtractionOutcome struct {
	Succeeded  bool
	Payload    []byte
	ByteLength int
	StrategyID string
}

// NewExtractionOutcome wraps a payload, marking it succeeded only when it reaches [MinViableBytes].
func NewExtractionOutcome(strategyID string, payload []byte) ExtractionOutcome {
	o := ExtractionOutcome{StrategyID: strategyID, ByteLength: len(payload)}
	if IsViable(payload) {
		o.Succeeded = true
		o.Payload = payload
	}
	return o
}

// IsViable reports whether a payload is large enough to be treated as audio.
func IsViable(payload []byte) bool {
	return len(payload) >= MinViableBytes
}

// DownloadResult is the normalized outcome handed to the transport layer.
//
// Exactly one of AudioBuffer and Error is set. Use [NewSuccessResult] and
// [NewFailureResult] to build one.
type DownloadResult struct {
	Success     bool
	AudioBuffer []byte
	Filename    string
	ContentType string
	Source      string
	Error       string
}

// NewSuccessResult builds a successful result.
func NewSuccessResult(filename, source string, audio []byte) DownloadResult {
	return DownloadResult{
		Success:     true,
		AudioBuffer: audio,
		Filename:    filename,
		ContentType: ContentTypeMPEG,
		Source:      source,
	}
}

// NewFailureResult builds a failed result. An empty message is replaced with a generic one.
func NewFailureResult(filename, message string) DownloadResult {
	if message == "" {
		message = "download failed"
	}
	return DownloadResult{
		Filename:    filename,
		ContentType: ContentTypeMPEG,
		Error:       message,
	}
}

// Valid reports whether the result satisfies the exactly-one-of rule for payload and error.
func (r DownloadResult) Valid() bool {
	hasAudio := len(r.AudioBuffer) > 0
	hasError := r.Error != ""
	if hasAudio == hasError {
		return false
	}
	if r.Success {
		return hasAudio && IsViable(r.AudioBuffer) && r.Source != ""
	}
	return hasError
}

// Len is the payload length in bytes.
func (r DownloadResult) Len() int {
	return len(r.AudioBuffer)
}
