package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotclone/internal/shared"
)

// YTDLPStrategyID identifies the command-line strategy.
const YTDLPStrategyID = "ytdlp"

// ClientProfile is one client identity presented to the video platform by yt-dlp.
type ClientProfile struct {
	Name          string // player client passed to the youtube extractor
	UserAgent     string
	ExtractorArgs string
}

// AudioFormat is the yt-dlp format selector. MP3 wins when offered; otherwise the
// native container is written unchanged and only labelled audio/mpeg downstream.
const AudioFormat = "bestaudio[ext=mp3]/bestaudio[ext=m4a]/bestaudio/best"

// Args builds the yt-dlp argument list that writes the best audio stream to stdout.
func (p ClientProfile) Args(sourceURL string) []string {
	args := []string{
		"-f", AudioFormat,
		"-o", "-",
		"--no-playlist",
		"--no-progress",
		"--quiet",
		"--no-warnings",
	}
	if p.UserAgent != "" {
		args = append(args, "--user-agent", p.UserAgent)
	}
	if p.ExtractorArgs != "" {
		args = append(args, "--extractor-args", p.ExtractorArgs)
	}
	return append(args, sourceURL)
}

var defaultProfiles = []ClientProfile{
	{
		Name:          "android",
		UserAgent:     "com.google.android.youtube/19.09.37 (Linux; U; Android 11) gzip",
		ExtractorArgs: "youtube:player_client=android",
	},
	{
		Name:          "ios",
		UserAgent:     "com.google.ios.youtube/19.09.3 (iPhone14,3; U; CPU iOS 15_6 like Mac OS X)",
		ExtractorArgs: "youtube:player_client=ios",
	},
	{
		Name:          "web",
		UserAgent:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		ExtractorArgs: "youtube:player_client=web",
	},
	{
		Name:          "tv_embedded",
		UserAgent:     "Mozilla/5.0 (PlayStation; PlayStation 4/12.00) AppleWebKit/605.1.15 (KHTML, like Gecko)",
		ExtractorArgs: "youtube:player_client=tv_embedded",
	},
}

// DefaultProfiles returns the client identities in the order they are tried.
func DefaultProfiles() []ClientProfile {
	return slices.Clone(defaultProfiles)
}

// CommandRunner runs name with args and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs a real subprocess. The process and its children are killed when ctx expires.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = sysProcAttr()
	cmd.Cancel = func() error { return killProcessGroup(cmd) }

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, contextError(ctx)
		}
		return nil, fmt.Errorf("%w: %s: %v | %s", shared.ErrProcessFailed, name, err, lastLine(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// YTDLP is the command-line strategy.
type YTDLP struct {
	path     string
	profiles []ClientProfile
	run      CommandRunner
	timeout  time.Duration
	logger   *log.Logger
}

// YTDLPOption configures a [YTDLP].
type YTDLPOption func(*YTDLP)

// WithProfiles replaces the client identities tried by the strategy.
func WithProfiles(profiles ...ClientProfile) YTDLPOption {
	return func(y *YTDLP) { y.profiles = slices.Clone(profiles) }
}

// WithRunner replaces the subprocess runner.
func WithRunner(run CommandRunner) YTDLPOption {
	return func(y *YTDLP) { y.run = run }
}

// NewYTDLP creates the command-line strategy. An empty path selects "yt-dlp" on PATH.
func NewYTDLP(path string, timeout time.Duration, logger *log.Logger, opts ...YTDLPOption) *YTDLP {
	if path == "" {
		path = "yt-dlp"
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	y := &YTDLP{
		path:     path,
		profiles: DefaultProfiles(),
		run:      ExecRunner,
		timeout:  timeoutOrDefault(timeout),
		logger:   shared.WithPrefix(logger, "ytdlp"),
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

func (y *YTDLP) ID() string { return YTDLPStrategyID }

// Available reports whether the executable can be found.
func (y *YTDLP) Available() error {
	if _, err := exec.LookPath(y.path); err != nil {
		return fmt.Errorf("%w: %s not found: %v", shared.ErrServiceUnavailable, y.path, err)
	}
	return nil
}

// Extract tries each profile in order. The first one producing a viable payload wins.
func (y *YTDLP) Extract(ctx context.Context, sourceURL string) ([]byte, error) {
	var errs []error
	for _, profile := range y.profiles {
		data, err := y.attempt(ctx, profile, sourceURL)
		if err == nil {
			y.logger.Debug("profile succeeded", "profile", profile.Name, "bytes", len(data))
			return data, nil
		}

		y.logger.Debug("profile failed", "profile", profile.Name, "url", sourceURL, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", profile.Name, err))
	}

	return nil, fmt.Errorf("%w: %s: all %d client profiles failed: %w",
		shared.ErrExtractionFailed, YTDLPStrategyID, len(y.profiles), errors.Join(errs...))
}

func (y *YTDLP) attempt(ctx context.Context, profile ClientProfile, sourceURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	done := make(chan readResult, 1)
	go func() {
		out, err := y.run(ctx, y.path, profile.Args(sourceURL)...)
		done <- readResult{data: out, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return checkViable(r.data)
	case <-ctx.Done():
		return nil, contextError(ctx)
	}
}
