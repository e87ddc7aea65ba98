package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotclone/internal/models"
	"github.com/desertthunder/spotclone/internal/services"
	"github.com/desertthunder/spotclone/internal/shared"
	"github.com/desertthunder/spotclone/internal/tasks"
)

const maxBodyBytes = 1 << 20

// DownloadHandler serves GET and POST /api/download.
type DownloadHandler struct {
	engine   tasks.Downloader
	recorder Recorder
	logger   *log.Logger
}

// NewDownloadHandler creates a DownloadHandler. recorder may be nil.
func NewDownloadHandler(engine tasks.Downloader, recorder Recorder, logger *log.Logger) *DownloadHandler {
	return &DownloadHandler{engine: engine, recorder: recorder, logger: logger}
}

func (h *DownloadHandler) Routes() []string { return []string{"/api/download"} }

func (h *DownloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req models.DownloadRequest

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req = models.DownloadRequest{TrackName: q.Get("trackName"), ArtistName: q.Get("artistName")}
	case http.MethodPost:
		if err := decodeBody(r, &req); err != nil {
			WriteError(w, err, "")
			return
		}
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
		return
	}

	if err := req.Validate(); err != nil {
		WriteError(w, err, "trackName is required")
		return
	}

	// The pipeline runs to completion even if the client goes away.
	ctx := context.WithoutCancel(r.Context())
	res, err := h.engine.Download(ctx, req, nil)
	if h.recorder != nil {
		h.recorder.Record(req, res)
	}

	if err != nil {
		h.logger.Warn("download failed", "track", req.TrackName, "error", err)
		WriteError(w, err, res.Error)
		return
	}
	if !res.Valid() {
		h.logger.Error("engine returned an invalid result", "track", req.TrackName)
		WriteError(w, fmt.Errorf("invalid result"), "")
		return
	}

	WriteDownloadResult(w, res)
}

type batchBody struct {
	Tracks   []models.DownloadRequest `json:"tracks"`
	Platform string                   `json:"platform"`
	Quality  string                   `json:"quality"`
	Format   string                   `json:"format"`
}

type batchResponse struct {
	Success bool               `json:"success"`
	Data    *tasks.BatchResult `json:"data"`
}

// BatchHandler serves POST /api/download/batch.
type BatchHandler struct {
	resolver Resolver
	logger   *log.Logger
}

// NewBatchHandler creates a BatchHandler over resolver.
func NewBatchHandler(resolver Resolver, logger *log.Logger) *BatchHandler {
	return &BatchHandler{resolver: resolver, logger: logger}
}

func (h *BatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body batchBody
	if err := decodeBody(r, &body); err != nil {
		WriteError(w, err, "")
		return
	}

	platform, err := models.ParseProviderID(body.Platform)
	if err != nil {
		WriteError(w, err, "")
		return
	}
	quality, err := services.ParseQuality(body.Quality)
	if err != nil {
		WriteError(w, err, "")
		return
	}

	result, err := h.resolver.Resolve(r.Context(), tasks.BatchRequest{
		Tracks:   body.Tracks,
		Platform: platform,
		Quality:  quality,
		Format:   body.Format,
	}, nil)
	if err != nil {
		h.logger.Warn("batch rejected", "error", err)
		WriteError(w, err, "")
		return
	}

	writeJSON(w, http.StatusOK, batchResponse{Success: true, Data: result})
}

// HealthHandler reports liveness for deploy probes.
func HealthHandler(version string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: request body is empty", shared.ErrMissingArgument)
		}
		return fmt.Errorf("%w: malformed JSON body: %v", shared.ErrInvalidArgument, err)
	}
	return nil
}
