package videos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultYouTubeBaseURL is the YouTube Data API v3 root.
const DefaultYouTubeBaseURL = "https://www.googleapis.com/youtube/v3"

// YouTubeProvider reads duration and view statistics from the YouTube Data API.
type YouTubeProvider struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

// NewYouTubeProvider returns a provider for the given API key, or nil when the
// key is empty so callers fall back to default metadata.
func NewYouTubeProvider(apiKey string, timeout time.Duration) *YouTubeProvider {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &YouTubeProvider{
		APIKey:  apiKey,
		BaseURL: DefaultYouTubeBaseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

type youTubeVideosResponse struct {
	Items []struct {
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// Lookup issues a single videos.list request for videoID.
func (p *YouTubeProvider) Lookup(ctx context.Context, videoID string) (Metadata, error) {
	if p == nil || p.APIKey == "" {
		return Metadata{}, ErrProviderUnavailable
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	base := strings.TrimSuffix(p.BaseURL, "/")
	if base == "" {
		base = DefaultYouTubeBaseURL
	}

	query := url.Values{}
	query.Set("part", "contentDetails,statistics")
	query.Set("id", videoID)
	query.Set("key", p.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/videos?"+query.Encode(), nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("build youtube request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("youtube request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Metadata{}, fmt.Errorf("youtube request: unexpected status %d", resp.StatusCode)
	}

	var payload youTubeVideosResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return Metadata{}, fmt.Errorf("decode youtube response: %w", err)
	}
	if len(payload.Items) == 0 {
		return Metadata{}, fmt.Errorf("youtube video %s: %w", videoID, ErrEmptyResult)
	}

	item := payload.Items[0]
	seconds, ok := ParseISODuration(item.ContentDetails.Duration)
	if !ok {
		return Metadata{}, fmt.Errorf("youtube video %s: malformed duration %q", videoID, item.ContentDetails.Duration)
	}

	var views int64
	if raw := item.Statistics.ViewCount; raw != "" {
		views, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Metadata{}, fmt.Errorf("youtube video %s: parse view count: %w", videoID, err)
		}
		if views < 0 {
			return Metadata{}, errors.New("youtube returned a negative view count")
		}
	}

	return Metadata{DurationSeconds: seconds, ViewCount: views}, nil
}
