// Package tasks runs downloads and batch stream-URL lookups with real-time progress reporting.
//
// # Download Engine
//
// [DownloadEngine] is a small state machine:
//
//	Idle → SearchingPrimary → ExtractingPrimary → SearchingSecondary → ExtractingSecondary → Succeeded | Failed
//
// The ordering lives in [DefaultSteps]: YouTube is searched first and its candidate is tried
// with yt-dlp, then in-process streaming. SoundCloud is searched only when YouTube produced
// nothing usable and is tried with in-process streaming alone. The first payload of at least
// [models.MinViableBytes] wins and nothing after it runs. Steps execute sequentially.
//
// # Batch Resolution
//
// [BatchResolver] performs search plus stream-URL resolution for up to [MaxBatchTracks] tracks
// with an errgroup-limited fan-out. Results keep request order. It never runs extraction.
//
// # Progress Reporting
//
// All operations accept an optional channel for progress updates.
//
// The [ProgressUpdate] struct contains the state entered, step counters, a message and optional data.
// Updates use select with default to prevent blocking.
package tasks
