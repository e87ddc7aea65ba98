package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/spotclone/internal/shared"
)

var _ Model = (*DownloadRecord)(nil)

// DownloadRecord stores metadata about a completed download. Audio bytes are never persisted.
type DownloadRecord struct {
	id           string
	sequence     int
	trackName    string
	artistName   string
	filename     string
	success      bool
	source       string
	byteLength   int
	errorMessage string
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

// NewDownloadRecord builds a record from a request and its terminal result.
func NewDownloadRecord(req DownloadRequest, res DownloadResult) *DownloadRecord {
	now := time.Now()
	return &DownloadRecord{
		trackName:    req.TrackName,
		artistName:   req.ArtistName,
		filename:     res.Filename,
		success:      res.Success,
		source:       res.Source,
		byteLength:   res.Len(),
		errorMessage: res.Error,
		createdAt:    now,
		updatedAt:    now,
	}
}

// RestoreDownloadRecord rebuilds a record from stored columns.
func RestoreDownloadRecord(
	id string, sequence int, trackName, artistName, filename string, success bool,
	source string, byteLength int, errorMessage string, createdAt, updatedAt time.Time, deletedAt *time.Time,
) *DownloadRecord {
	return &DownloadRecord{
		id:           id,
		sequence:     sequence,
		trackName:    trackName,
		artistName:   artistName,
		filename:     filename,
		success:      success,
		source:       source,
		byteLength:   byteLength,
		errorMessage: errorMessage,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
		deletedAt:    deletedAt,
	}
}

func (d *DownloadRecord) ID() string            { return d.id }
func (d *DownloadRecord) Sequence() int         { return d.sequence }
func (d *DownloadRecord) TrackName() string     { return d.trackName }
func (d *DownloadRecord) ArtistName() string    { return d.artistName }
func (d *DownloadRecord) Filename() string      { return d.filename }
func (d *DownloadRecord) Success() bool         { return d.success }
func (d *DownloadRecord) Source() string        { return d.source }
func (d *DownloadRecord) ByteLength() int       { return d.byteLength }
func (d *DownloadRecord) ErrorMessage() string  { return d.errorMessage }
func (d *DownloadRecord) CreatedAt() time.Time  { return d.createdAt }
func (d *DownloadRecord) UpdatedAt() time.Time  { return d.updatedAt }
func (d *DownloadRecord) DeletedAt() *time.Time { return d.deletedAt }

func (d *DownloadRecord) SetID(id string)            { d.id = id }
func (d *DownloadRecord) SetSequence(seq int)        { d.sequence = seq }
func (d *DownloadRecord) SetUpdatedAt(t time.Time)   { d.updatedAt = t }
func (d *DownloadRecord) SetErrorMessage(msg string) { d.errorMessage = msg }

// Validate checks required fields and the success/error pairing.
func (d *DownloadRecord) Validate() error {
	if d.trackName == "" {
		return fmt.Errorf("%w: track name is required", shared.ErrInvalidInput)
	}
	if d.filename == "" {
		return fmt.Errorf("%w: filename is required", shared.ErrInvalidInput)
	}
	if d.success && d.source == "" {
		return fmt.Errorf("%w: successful download requires a source", shared.ErrInvalidInput)
	}
	if !d.success && d.errorMessage == "" {
		return fmt.Errorf("%w: failed download requires an error message", shared.ErrInvalidInput)
	}
	if d.byteLength < 0 {
		return fmt.Errorf("%w: byte length must not be negative", shared.ErrInvalidInput)
	}
	return nil
}
