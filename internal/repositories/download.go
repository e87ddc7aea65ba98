package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotclone/internal/models"
	"github.com/desertthunder/spotclone/internal/shared"
)

const downloadColumns = `id, sequence, track_name, artist_name, filename, success, source, byte_length, error_message, created_at, updated_at, deleted_at`

// DownloadRepository implements models.Repository[*models.DownloadRecord] for download history.
type DownloadRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.DownloadRecord] = (*DownloadRepository)(nil)

// NewDownloadRepository creates a new DownloadRepository with the given database connection
func NewDownloadRepository(db *sql.DB) *DownloadRepository {
	return &DownloadRepository{db: db}
}

// Create inserts a new [models.DownloadRecord] with generated ID and sequence
func (r *DownloadRepository) Create(rec *models.DownloadRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "downloads")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	rec.SetID(shared.GenerateID())
	rec.SetSequence(sequence)

	query := `
		INSERT INTO downloads (id, sequence, track_name, artist_name, filename, success, source, byte_length, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		rec.ID(),
		rec.Sequence(),
		rec.TrackName(),
		rec.ArtistName(),
		rec.Filename(),
		rec.Success(),
		rec.Source(),
		rec.ByteLength(),
		rec.ErrorMessage(),
		rec.CreatedAt(),
		rec.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert download: %w", err)
	}

	return nil
}

// Get retrieves a download by ID, excluding soft-deleted records
func (r *DownloadRepository) Get(id string) (*models.DownloadRecord, error) {
	query := `SELECT ` + downloadColumns + ` FROM downloads WHERE id = ? AND deleted_at IS NULL`

	rec, err := scanDownload(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: download %s", ErrNotFound, id)
	}
	return rec, err
}

// Update rewrites the error message of an existing download. Other columns are immutable.
func (r *DownloadRepository) Update(rec *models.DownloadRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	rec.SetUpdatedAt(now)

	result, err := r.db.Exec(`
		UPDATE downloads
		SET error_message = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, rec.ErrorMessage(), now, rec.ID())
	if err != nil {
		return fmt.Errorf("failed to update download: %w", err)
	}

	return expectOneRow(result, rec.ID())
}

// Delete soft-deletes a download by ID
func (r *DownloadRepository) Delete(id string) error {
	result, err := r.db.Exec(`
		UPDATE downloads
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete download: %w", err)
	}

	return expectOneRow(result, id)
}

// List retrieves downloads matching the given criteria, newest first.
//
// Supported criteria: "source" (string), "success" (bool), "track" (string, exact), "limit" (int).
func (r *DownloadRepository) List(criteria map[string]any) ([]*models.DownloadRecord, error) {
	query := `SELECT ` + downloadColumns + ` FROM downloads WHERE deleted_at IS NULL`
	args := []any{}

	if source, ok := criteria["source"].(string); ok && source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}

	if success, ok := criteria["success"].(bool); ok {
		query += " AND success = ?"
		args = append(args, success)
	}

	if track, ok := criteria["track"].(string); ok && track != "" {
		query += " AND track_name = ?"
		args = append(args, track)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	defer rows.Close()

	var records []*models.DownloadRecord
	for rows.Next() {
		rec, err := scanDownload(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// Recent returns the newest n downloads.
func (r *DownloadRepository) Recent(n int) ([]*models.DownloadRecord, error) {
	return r.List(map[string]any{"limit": n})
}

func scanDownload(row scanner) (*models.DownloadRecord, error) {
	var (
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
		deletedAt    sql.NullTime
	)

	err := row.Scan(&id, &sequence, &trackName, &artistName, &filename, &success, &source, &byteLength, &errorMessage, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan download: %w", err)
	}

	var deleted *time.Time
	if deletedAt.Valid {
		deleted = &deletedAt.Time
	}

	return models.RestoreDownloadRecord(id, sequence, trackName, artistName, filename, success,
		source, byteLength, errorMessage, createdAt, updatedAt, deleted), nil
}

func expectOneRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: download %s not found or already deleted", ErrNotFound, id)
	}
	return nil
}

// HistoryRecorder records completed downloads. Failures are logged and swallowed
// so that history never changes a response.
type HistoryRecorder struct {
	repo   *DownloadRepository
	logger *log.Logger
}

// NewHistoryRecorder creates a HistoryRecorder over repo.
func NewHistoryRecorder(repo *DownloadRepository, logger *log.Logger) *HistoryRecorder {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &HistoryRecorder{repo: repo, logger: shared.WithPrefix(logger, "history")}
}

// Record stores metadata about a terminal result. Invalid requests are not recorded.
func (h *HistoryRecorder) Record(req models.DownloadRequest, res models.DownloadResult) {
	if h == nil || h.repo == nil {
		return
	}
	if err := req.Validate(); err != nil {
		return
	}

	rec := models.NewDownloadRecord(req, res)
	if err := h.repo.Create(rec); err != nil {
		h.logger.Warn("failed to record download", "track", req.TrackName, "error", err)
		return
	}
	h.logger.Debug("recorded download", "id", rec.ID(), "sequence", rec.Sequence())
}
