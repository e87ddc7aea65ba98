// Package server exposes the download engine over HTTP.
//
// # Routes
//
//   - GET|POST /api/download : run the fallback chain for one track and stream back the audio
//   - POST /api/download/batch : search plus stream-URL resolution for up to 50 tracks
//   - GET /api/health : liveness probe
//
// Successful downloads are written by [WriteDownloadResult] as an attachment with
// Content-Type, Content-Disposition, Content-Length, Cache-Control and X-Download-Source headers.
// Every failure is a JSON [ErrorBody] whose status comes from [StatusFor].
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first).
// [BasicRouter] uses [http.ServeMux] internally and dispatches on method per path.
//
// [Recover], [RequestLogger] and [RateLimit] are installed by [New].
package server
