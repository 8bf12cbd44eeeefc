// Package threads encodes the Threads publishing API hosted at
// graph.threads.net. A post is a container created on /{user_id}/threads,
// polled until its status is FINISHED, then published on
// /{user_id}/threads_publish. Unlike the Instagram endpoints every
// parameter travels in the query string.
package threads

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/fpang/meta-publisher/internal/graph"
	"github.com/fpang/meta-publisher/internal/jsonutil"
	"github.com/fpang/meta-publisher/internal/platform"
	"github.com/fpang/meta-publisher/internal/retry"
)

const (
	MinCarouselItems = 2
	MaxCarouselItems = 20
)

// Variant is the kind of Threads container to create.
type Variant int

const (
	VariantText Variant = iota
	VariantImage
	VariantVideo
	VariantCarouselItemImage
	VariantCarouselItemVideo
	VariantCarousel
)

func (v Variant) String() string {
	switch v {
	case VariantText:
		return "TEXT"
	case VariantImage:
		return "IMAGE"
	case VariantVideo:
		return "VIDEO"
	case VariantCarouselItemImage:
		return "CAROUSEL_ITEM_IMAGE"
	case VariantCarouselItemVideo:
		return "CAROUSEL_ITEM_VIDEO"
	case VariantCarousel:
		return "CAROUSEL"
	}
	return "Variant(" + strconv.Itoa(int(v)) + ")"
}

// ContainerParams carries the optional fields of a create call.
type ContainerParams struct {
	Text       string
	ImageURL   string
	VideoURL   string
	AltText    string
	ReplyToID  string
	TopicTag   string
	LocationID string
	Children   []string
}

// Client calls the Threads API through a graph.Client whose base URL is
// graph.ThreadsBaseURL.
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

// NewClient creates a Threads adapter.
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

type idResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type permalinkResponse struct {
	ID        string `json:"id"`
	Permalink string `json:"permalink"`
}

// PublishResponse is the thread object returned by threads_publish.
type PublishResponse struct {
	ID string `json:"id"`
}

// CreateContainer creates a container of variant v for userID.
func (c *Client) CreateContainer(ctx context.Context, userID string, v Variant, p ContainerParams) (string, error) {
	qs, err := query(v, p)
	if err != nil {
		return "", err
	}
	raw, err := c.api.Post(ctx, "/"+graph.PathID(userID)+"/threads", qs, nil)
	if err != nil {
		return "", fmt.Errorf("create %s container: %w", v, err)
	}
	resp, err := jsonutil.Decode[idResponse](raw)
	if err != nil || resp.ID == "" {
		ce := &platform.CreationError{Platform: platform.Threads, Variant: v.String(), Raw: jsonutil.Preview(raw)}
		if err != nil {
			ce.Reason = err.Error()
		}
		return "", ce
	}
	return resp.ID, nil
}

func query(v Variant, p ContainerParams) (url.Values, error) {
	qs := url.Values{}
	setIf := func(key, value string) {
		if value != "" {
			qs.Set(key, value)
		}
	}
	require := func(field, value string) error {
		if value == "" {
			return fmt.Errorf("create %s container: %s is required", v, field)
		}
		return nil
	}

	switch v {
	case VariantText:
		if err := require("text", p.Text); err != nil {
			return nil, err
		}
		qs.Set("media_type", "TEXT")
	case VariantImage, VariantCarouselItemImage:
		if err := require("image URL", p.ImageURL); err != nil {
			return nil, err
		}
		qs.Set("media_type", "IMAGE")
		qs.Set("image_url", p.ImageURL)
		setIf("alt_text", p.AltText)
	case VariantVideo, VariantCarouselItemVideo:
		if err := require("video URL", p.VideoURL); err != nil {
			return nil, err
		}
		qs.Set("media_type", "VIDEO")
		qs.Set("video_url", p.VideoURL)
		setIf("alt_text", p.AltText)
	case VariantCarousel:
		if len(p.Children) == 0 {
			return nil, fmt.Errorf("create %s container: no children", v)
		}
		qs.Set("media_type", "CAROUSEL")
		qs.Set("children", strings.Join(p.Children, ","))
	default:
		return nil, fmt.Errorf("unknown container variant %s", v)
	}

	if v == VariantCarouselItemImage || v == VariantCarouselItemVideo {
		qs.Set("is_carousel_item", "true")
		return qs, nil
	}
	setIf("text", p.Text)
	setIf("reply_to_id", p.ReplyToID)
	setIf("topic_tag", p.TopicTag)
	setIf("location_id", p.LocationID)
	return qs, nil
}

// ContainerStatus returns the processing state of a container, retried.
func (c *Client) ContainerStatus(ctx context.Context, containerID string) (platform.Container, error) {
	return retry.Do(ctx, c.retry, func(ctx context.Context) (platform.Container, error) {
		raw, err := c.api.Get(ctx, "/"+graph.PathID(containerID), url.Values{"fields": {"id,status,error_message"}})
		if err != nil {
			return platform.Container{}, fmt.Errorf("container %s status: %w", containerID, err)
		}
		resp, err := jsonutil.Decode[statusResponse](raw)
		if err != nil {
			return platform.Container{}, fmt.Errorf("container %s status: %w", containerID, err)
		}
		return platform.Container{
			ID:           containerID,
			Status:       platform.ParseStatus(resp.Status),
			ErrorMessage: resp.ErrorMessage,
		}, nil
	})
}

// Publish publishes a ready container.
func (c *Client) Publish(ctx context.Context, userID, containerID string) (*PublishResponse, error) {
	raw, err := c.api.Post(ctx, "/"+graph.PathID(userID)+"/threads_publish", url.Values{"creation_id": {containerID}}, nil)
	if err != nil {
		return nil, fmt.Errorf("publish container %s: %w", containerID, err)
	}
	resp, err := jsonutil.Decode[PublishResponse](raw)
	if err != nil || resp.ID == "" {
		return nil, &platform.PublishError{Platform: platform.Threads, ContainerID: containerID, Raw: jsonutil.Preview(raw)}
	}
	return &resp, nil
}

// Permalink returns the public URL of a published thread, or "".
func (c *Client) Permalink(ctx context.Context, mediaID string) (string, error) {
	return retry.Do(ctx, c.retry, func(ctx context.Context) (string, error) {
		raw, err := c.api.Get(ctx, "/"+graph.PathID(mediaID), url.Values{"fields": {"permalink"}})
		if err != nil {
			return "", fmt.Errorf("thread %s permalink: %w", mediaID, err)
		}
		resp, err := jsonutil.Decode[permalinkResponse](raw)
		if err != nil {
			return "", fmt.Errorf("thread %s permalink: %w", mediaID, err)
		}
		return resp.Permalink, nil
	})
}
