package videos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strings"
	"time"
)

// CommandRunner executes external commands and returns stdout bytes.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// YTDLPProvider reads duration and view counts with the yt-dlp CLI. It needs
// no API key, so it is selected explicitly rather than by credential.
type YTDLPProvider struct {
	Binary  string
	Args    []string
	Run     CommandRunner
	Timeout time.Duration
}

// ytdlpInfo is the subset of yt-dlp's info JSON the catalog cares about.
type ytdlpInfo struct {
	ID        string   `json:"id"`
	Duration  *float64 `json:"duration"`
	ViewCount *int64   `json:"view_count"`
	IsLive    bool     `json:"is_live"`
}

// NewYTDLPProvider constructs a Provider that shells out to yt-dlp.
func NewYTDLPProvider(binary string, timeout time.Duration) *YTDLPProvider {
	if strings.TrimSpace(binary) == "" {
		binary = "yt-dlp"
	}
	if timeout <= 0 {
		timeout = DefaultEnrichTimeout
	}
	return &YTDLPProvider{
		Binary:  binary,
		Args:    []string{"--dump-single-json", "--no-warnings", "--no-playlist", "--skip-download"},
		Run:     defaultCommandRunner,
		Timeout: timeout,
	}
}

// Lookup runs yt-dlp against the video's watch page.
func (p *YTDLPProvider) Lookup(ctx context.Context, videoID string) (Metadata, error) {
	if p == nil {
		return Metadata{}, ErrProviderUnavailable
	}
	run := p.Run
	if run == nil {
		run = defaultCommandRunner
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	args := append(append(make([]string, 0, len(p.Args)+1), p.Args...), WatchURL(videoID))
	out, err := run(ctx, p.Binary, args...)
	if err != nil {
		return Metadata{}, fmt.Errorf("yt-dlp %s: %w", videoID, err)
	}

	var info ytdlpInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return Metadata{}, fmt.Errorf("decode yt-dlp output for %s: %w", videoID, err)
	}
	return info.metadata(videoID)
}

// metadata converts the info document. Live streams report no usable
// duration, so they are treated like an empty result.
func (i ytdlpInfo) metadata(videoID string) (Metadata, error) {
	if i.IsLive || (i.Duration == nil && i.ViewCount == nil) {
		return Metadata{}, fmt.Errorf("yt-dlp %s: %w", videoID, ErrEmptyResult)
	}
	if i.ID != "" && i.ID != videoID {
		return Metadata{}, fmt.Errorf("yt-dlp returned %s for %s", i.ID, videoID)
	}

	var md Metadata
	if i.Duration != nil && *i.Duration > 0 {
		md.DurationSeconds = int(math.Round(*i.Duration))
	}
	if i.ViewCount != nil && *i.ViewCount > 0 {
		md.ViewCount = *i.ViewCount
	}
	return md, nil
}

func defaultCommandRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
	}
	return out, err
}
