// Package facebook encodes the Facebook Page publishing endpoints: photos,
// videos, reels and stories.
//
// Page content calls must use the page-scoped access token rather than the
// user token the client was built with. Client.Page resolves that token
// once and returns a Page bound to it, so every later call for that job
// (status reads and permalink lookups included) authenticates as the page.
package facebook

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/fpang/meta-publisher/internal/graph"
	"github.com/fpang/meta-publisher/internal/jsonutil"
	"github.com/fpang/meta-publisher/internal/platform"
	"github.com/fpang/meta-publisher/internal/retry"
)

// WebHost prefixes relative permalink_url values.
const WebHost = "https://www.facebook.com"

// ErrNoPageToken is returned when the page lookup yields no access_token.
var ErrNoPageToken = errors.New("no page access token returned")

// Client resolves page tokens with the user-level credential.
type Client struct {
	api   *graph.Client
	retry retry.Config
}

// Option configures a Client.
type Option func(*Client)

// WithRetry overrides the retry policy for status and permalink reads.
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// NewClient creates a Facebook adapter on top of api, which must point at
// the versioned graph.facebook.com base URL and carry the user token.
func NewClient(api *graph.Client, opts ...Option) *Client {
	c := &Client{api: api, retry: retry.DefaultConfig()}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.Retryable == nil {
		c.retry.Retryable = graph.IsRetryable
	}
	return c
}

type pageTokenResponse struct {
	ID          string `json:"id"`
	AccessToken string `json:"access_token"`
}

// Page looks up the page-scoped token for pageID and returns a handle that
// authenticates every subsequent call with it.
func (c *Client) Page(ctx context.Context, pageID string) (*Page, error) {
	raw, err := c.api.Get(ctx, "/"+graph.PathID(pageID), url.Values{"fields": {"access_token"}})
	if err != nil {
		return nil, fmt.Errorf("page %s token: %w", pageID, err)
	}
	resp, err := jsonutil.Decode[pageTokenResponse](raw)
	if err != nil {
		return nil, fmt.Errorf("page %s token: %w", pageID, err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("page %s: %w", pageID, ErrNoPageToken)
	}
	return &Page{ID: pageID, api: c.api.WithToken(resp.AccessToken), retry: c.retry}, nil
}

// Page issues content calls for one Facebook Page with its own token.
type Page struct {
	ID    string
	api   *graph.Client
	retry retry.Config
}

// Token returns the page-scoped token.
func (p *Page) Token() string {
	return p.api.Token()
}

func (p *Page) path(edge string) string {
	return "/" + graph.PathID(p.ID) + "/" + edge
}

// --- Photos ---

// PhotoParams describes a photo upload. Published=false stages the photo
// without a feed post, which is how photo stories start.
type PhotoParams struct {
	URL       string
	Caption   string
	Published *bool
}

// PhotoResponse is the response from POST /{page_id}/photos.
type PhotoResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id,omitempty"`
}

// PublishPhoto uploads a photo by URL. With Published unset the photo goes
// live immediately.
func (p *Page) PublishPhoto(ctx context.Context, params PhotoParams) (*PhotoResponse, error) {
	if params.URL == "" {
		return nil, fmt.Errorf("publish photo: image URL is required")
	}
	form := url.Values{"url": {params.URL}}
	if params.Caption != "" {
		form.Set("caption", params.Caption)
	}
	if params.Published != nil {
		form.Set("published", strconv.FormatBool(*params.Published))
	}

	raw, err := p.api.Post(ctx, p.path("photos"), nil, form)
	if err != nil {
		return nil, fmt.Errorf("publish photo: %w", err)
	}
	resp, err := jsonutil.Decode[PhotoResponse](raw)
	if err != nil || resp.ID == "" {
		return nil, &platform.CreationError{Platform: platform.Facebook, Variant: "PHOTO", Raw: jsonutil.Preview(raw)}
	}
	return &resp, nil
}

// --- Videos ---

// VideoParams describes a video created from a hosted file.
type VideoParams struct {
	FileURL     string
	Title       string
	Description string
}

type videoCreateResponse struct {
	ID      string `json:"id"`
	VideoID string `json:"video_id"`
}

// CreateVideo creates a page video from a public file URL and returns the
// video id. The platform answers with either video_id or id.
func (p *Page) CreateVideo(ctx context.Context, params VideoParams) (string, error) {
	if params.FileURL == "" {
		return "", fmt.Errorf("create video: video URL is required")
	}
	form := url.Values{"file_url": {params.FileURL}}
	if params.Title != "" {
		form.Set("title", params.Title)
	}
	if params.Description != "" {
		form.Set("description", params.Description)
	}

	raw, err := p.api.Post(ctx, p.path("videos"), nil, form)
	if err != nil {
		return "", fmt.Errorf("create video: %w", err)
	}
	resp, err := jsonutil.Decode[videoCreateResponse](raw)
	if err != nil {
		return "", &platform.CreationError{Platform: platform.Facebook, Variant: "VIDEO", Reason: err.Error(), Raw: jsonutil.Preview(raw)}
	}
	id := resp.VideoID
	if id == "" {
		id = resp.ID
	}
	if id == "" {
		return "", &platform.CreationError{Platform: platform.Facebook, Variant: "VIDEO", Raw: jsonutil.Preview(raw)}
	}
	return id, nil
}

// videoStatusResponse is the response from GET /{video_id}?fields=status.
type videoStatusResponse struct {
	ID     string `json:"id"`
	Status struct {
		VideoStatus string `json:"video_status"`
	} `json:"status"`
}

// VideoStatus maps status.video_status onto the shared vocabulary:
// ready, live and published are FINISHED, error is ERROR, anything else is
// still IN_PROGRESS. The read is retried.
func (p *Page) VideoStatus(ctx context.Context, videoID string) (platform.Container, error) {
	return retry.Do(ctx, p.retry, func(ctx context.Context) (platform.Container, error) {
		raw, err := p.api.Get(ctx, "/"+graph.PathID(videoID), url.Values{"fields": {"status"}})
		if err != nil {
			return platform.Container{}, fmt.Errorf("video %s status: %w", videoID, err)
		}
		resp, err := jsonutil.Decode[videoStatusResponse](raw)
		if err != nil {
			return platform.Container{}, fmt.Errorf("video %s status: %w", videoID, err)
		}
		out := platform.Container{ID: videoID, Status: mapVideoStatus(resp.Status.VideoStatus)}
		if out.Status == platform.StatusError {
			out.ErrorMessage = resp.Status.VideoStatus
		}
		return out, nil
	})
}

func mapVideoStatus(s string) platform.Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ready", "live", "published":
		return platform.StatusFinished
	case "error":
		return platform.StatusError
	default:
		return platform.StatusInProgress
	}
}

type permalinkResponse struct {
	ID           string `json:"id"`
	PermalinkURL string `json:"permalink_url"`
}

// Permalink returns the absolute public URL of a page post, photo or video.
func (p *Page) Permalink(ctx context.Context, objectID string) (string, error) {
	return retry.Do(ctx, p.retry, func(ctx context.Context) (string, error) {
		raw, err := p.api.Get(ctx, "/"+graph.PathID(objectID), url.Values{"fields": {"permalink_url"}})
		if err != nil {
			return "", fmt.Errorf("object %s permalink: %w", objectID, err)
		}
		resp, err := jsonutil.Decode[permalinkResponse](raw)
		if err != nil {
			return "", fmt.Errorf("object %s permalink: %w", objectID, err)
		}
		if resp.ID == "" {
			return "", fmt.Errorf("object %s permalink: no id in response %s", objectID, jsonutil.Preview(raw))
		}
		return absolutePermalink(resp.PermalinkURL), nil
	})
}

func absolutePermalink(s string) string {
	if strings.HasPrefix(s, "/") {
		return WebHost + s
	}
	return s
}
