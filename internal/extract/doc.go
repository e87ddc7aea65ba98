// Package extract turns a resolved source URL into an audio payload.
//
// Two strategies are provided:
//   - [YTDLP] runs the yt-dlp executable once per [ClientProfile] and captures stdout
//   - [Stream] reads a media stream opened by a platform client ([Streamer])
//
// Every attempt is bounded by a timeout. On expiry the process is killed or the
// stream handle closed, and the attempt fails with [shared.ErrTimeout]. Payloads
// shorter than [models.MinViableBytes] fail with [shared.ErrPayloadTooSmall].
package extract
