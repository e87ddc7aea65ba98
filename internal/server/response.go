package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/desertthunder/spotclone/internal/models"
	"github.com/desertthunder/spotclone/internal/shared"
)

// ErrorBody is the fixed client-facing failure shape.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusFor maps an error to its HTTP status and short label.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrMissingArgument), errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, shared.ErrTrackNotFound):
		return http.StatusNotFound, "Download failed"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// WriteDownloadResult writes a successful result as a binary attachment.
func WriteDownloadResult(w http.ResponseWriter, res models.DownloadResult) {
	h := w.Header()
	h.Set("Content-Type", models.ContentTypeMPEG)
	h.Set("Content-Disposition", `attachment; filename="`+shared.EncodeFilename(res.Filename)+`"`)
	h.Set("Content-Length", strconv.Itoa(res.Len()))
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Download-Source", res.Source)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.AudioBuffer)
}

// WriteError writes err as a JSON {error, message} body. An empty message falls back to err's text,
// except for 500s, which never leak internals.
func WriteError(w http.ResponseWriter, err error, message string) {
	status, label := StatusFor(err)
	if status == http.StatusInternalServerError {
		message = "An unexpected error occurred"
	} else if message == "" {
		message = err.Error()
	}
	writeJSON(w, status, ErrorBody{Error: label, Message: message})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, ErrorBody{
		Error:   "Method not allowed",
		Message: "allowed methods: " + strings.Join(allowed, ", "),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
