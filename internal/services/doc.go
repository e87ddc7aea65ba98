// Package services defines the [Provider] interface for searchable platforms and implements it for YouTube and SoundCloud.
//
// # Provider Interface
//
// A provider answers one question: what is the single best match for this query?
// Search returns a [models.CandidateSource] or nil when nothing usable came back.
// The download engine treats nil as "try the next provider", never as fatal.
//
// # YouTube Implementation
//
// [YouTubeService] searches with ytsearch and opens audio streams with kkdai/youtube.
// It is also a stream source for the in-process extraction strategy and a
// [StreamResolver] for batch lookups.
//
// # SoundCloud Implementation
//
// [SoundCloudService] calls api-v2 with an anonymous client_id that is bootstrapped
// lazily from the site's asset scripts. Bootstrap failures are tolerated.
// JSON responses are probed with gjson rather than decoded into structs.
//
// # Spotify Catalog
//
// [SpotifyService] is not a [Provider]. It resolves Spotify track ids to a
// [models.DownloadRequest] for the CLI using client-credentials tokens and a
// short-lived in-memory cache.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAPIRequest] : HTTP request failed or returned a bad status
//   - [shared.ErrNoPlayableFormat] : the item has no audio rendition
//   - [shared.ErrTrackNotFound] : catalog lookup found nothing
//   - [shared.ErrMissingCredentials] : Spotify app credentials missing
package services
