package tasks

import (
	"fmt"

	"github.com/desertthunder/spotclone/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or log for display.
type ProgressUpdate struct {
	State   State  // Engine state entered
	Step    int    // Current step number
	Total   int    // Total steps
	Message string // Human-readable message for display
	Data    any    // Optional state-specific data (e.g., *models.CandidateSource)
}

// State is a download engine state.
type State int

const (
	Idle State = iota
	SearchingPrimary
	ExtractingPrimary
	SearchingSecondary
	ExtractingSecondary
	Succeeded
	Failed
	Resolving
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case SearchingPrimary:
		return "searching_primary"
	case ExtractingPrimary:
		return "extracting_primary"
	case SearchingSecondary:
		return "searching_secondary"
	case ExtractingSecondary:
		return "extracting_secondary"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Resolving:
		return "resolving"
	default:
		return ""
	}
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}

func idleUpdate(query string) ProgressUpdate {
	return ProgressUpdate{State: Idle, Message: fmt.Sprintf("Preparing search for %q...", query)}
}

func searchUpdate(state State, step, total int, provider string) ProgressUpdate {
	return ProgressUpdate{
		State:   state,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Searching %s...", provider),
	}
}

func extractUpdate(state State, step, total int, c *models.CandidateSource) ProgressUpdate {
	return ProgressUpdate{
		State:   state,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Extracting audio for %q from %s...", c.Title, c.Provider),
		Data:    c,
	}
}

func succeededUpdate(source string, size int) ProgressUpdate {
	return ProgressUpdate{
		State:   Succeeded,
		Message: fmt.Sprintf("✓ Downloaded %d bytes via %s", size, source),
		Data:    source,
	}
}

func failedUpdate(message string) ProgressUpdate {
	return ProgressUpdate{State: Failed, Message: "✗ " + message}
}

func resolvedUpdate(step, total int, track TrackStream) ProgressUpdate {
	if track.Success {
		return ProgressUpdate{
			State:   Resolving,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, track.TrackName),
			Data:    track,
		}
	}
	return ProgressUpdate{
		State:   Resolving,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %s", step, total, track.TrackName, track.Error),
		Data:    track,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
