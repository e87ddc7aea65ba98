// Package models defines domain entities and persistence interfaces for the download backend.
//
// The package contains two categories of types:
//
// 1. Per-request values: created for one download and discarded after the response is written
//   - [DownloadRequest] : the caller's track name and optional artist
//   - [CandidateSource] : a provider's best match for a search query
//   - [ExtractionOutcome] : the payload produced by one extraction attempt
//   - [DownloadResult] : the normalized success or failure handed to the transport layer
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [DownloadRecord] : metadata about a completed download (never the audio bytes)
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
