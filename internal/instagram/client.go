// Package instagram encodes the Instagram Graph API content publishing
// protocol: create a media container, poll its status_code until
// processing finishes, publish it through media_publish, then look up the
// permalink of the resulting media.
//
// Carousels are built from child containers (is_carousel_item=true) and a
// parent container of media_type CAROUSEL that references them by id.
// Sequencing those calls is the orchestrator's job; this package only maps
// each call to its request and response schema.
package instagram

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
	// MinCarouselItems and MaxCarouselItems bound a carousel's child count.
	MinCarouselItems = 2
	MaxCarouselItems = 10
)

// Variant is the kind of container to create.
type Variant int

const (
	VariantImage Variant = iota
	VariantVideo
	VariantReels
	VariantStoryImage
	VariantStoryVideo
	VariantCarouselChildImage
	VariantCarouselChildVideo
	VariantCarouselParent
)

var variantNames = map[Variant]string{
	VariantImage:              "IMAGE",
	VariantVideo:              "VIDEO",
	VariantReels:              "REELS",
	VariantStoryImage:         "STORY_IMAGE",
	VariantStoryVideo:         "STORY_VIDEO",
	VariantCarouselChildImage: "CAROUSEL_CHILD_IMAGE",
	VariantCarouselChildVideo: "CAROUSEL_CHILD_VIDEO",
	VariantCarouselParent:     "CAROUSEL_PARENT",
}

func (v Variant) String() string {
	if s, ok := variantNames[v]; ok {
		return s
	}
	return "Variant(" + strconv.Itoa(int(v)) + ")"
}

// ContainerParams carries the per-variant fields of a create call.
// URL is the public media URL; Children is only used by VariantCarouselParent.
type ContainerParams struct {
	URL           string
	Caption       string
	CoverURL      string
	ThumbOffsetMs *int
	ShareToFeed   *bool
	Children      []string
}

// Client calls the Instagram Graph API through a graph.Client.
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

// NewClient creates an Instagram adapter on top of api, which must point at
// the versioned graph.facebook.com base URL.
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

// --- API response schemas ---

type idResponse struct {
	ID string `json:"id"`
}

// containerStatusResponse is the response from GET /{container_id}?fields=status_code,status.
type containerStatusResponse struct {
	ID         string `json:"id"`
	StatusCode string `json:"status_code"`
	Status     string `json:"status,omitempty"`
}

type permalinkResponse struct {
	ID        string `json:"id"`
	Permalink string `json:"permalink"`
}

// PublishResponse is the media object returned by media_publish.
type PublishResponse struct {
	ID string `json:"id"`
}

// --- Container creation ---

// CreateContainer creates a media container for variant v under igUserID and
// returns its id. The call is not retried.
func (c *Client) CreateContainer(ctx context.Context, igUserID string, v Variant, p ContainerParams) (string, error) {
	form, err := payload(v, p)
	if err != nil {
		return "", err
	}

	raw, err := c.api.Post(ctx, "/"+graph.PathID(igUserID)+"/media", nil, form)
	if err != nil {
		return "", fmt.Errorf("create %s container: %w", v, err)
	}
	resp, err := jsonutil.Decode[idResponse](raw)
	if err != nil {
		return "", &platform.CreationError{Platform: platform.Instagram, Variant: v.String(), Reason: err.Error(), Raw: jsonutil.Preview(raw)}
	}
	if resp.ID == "" {
		return "", &platform.CreationError{Platform: platform.Instagram, Variant: v.String(), Raw: jsonutil.Preview(raw)}
	}
	return resp.ID, nil
}

// payload builds the form body for a create call.
func payload(v Variant, p ContainerParams) (url.Values, error) {
	form := url.Values{}
	setIf := func(key, value string) {
		if value != "" {
			form.Set(key, value)
		}
	}

	if v == VariantCarouselParent {
		if len(p.Children) == 0 {
			return nil, fmt.Errorf("create %s container: no children", v)
		}
		form.Set("media_type", "CAROUSEL")
		form.Set("children", strings.Join(p.Children, ","))
		setIf("caption", p.Caption)
		return form, nil
	}

	if p.URL == "" {
		return nil, fmt.Errorf("create %s container: media URL is required", v)
	}

	switch v {
	case VariantImage:
		form.Set("image_url", p.URL)
	case VariantVideo:
		form.Set("video_url", p.URL)
		form.Set("media_type", "REELS")
		setIf("cover_url", p.CoverURL)
	case VariantReels:
		form.Set("video_url", p.URL)
		form.Set("media_type", "REELS")
		setIf("cover_url", p.CoverURL)
		if p.ThumbOffsetMs != nil {
			form.Set("thumb_offset", strconv.Itoa(*p.ThumbOffsetMs))
		}
		if p.ShareToFeed != nil {
			form.Set("share_to_feed", strconv.FormatBool(*p.ShareToFeed))
		}
	case VariantStoryImage:
		form.Set("image_url", p.URL)
		form.Set("media_type", "STORIES")
	case VariantStoryVideo:
		form.Set("video_url", p.URL)
		form.Set("media_type", "STORIES")
	case VariantCarouselChildImage:
		form.Set("image_url", p.URL)
		form.Set("is_carousel_item", "true")
	case VariantCarouselChildVideo:
		form.Set("video_url", p.URL)
		form.Set("media_type", "VIDEO")
		form.Set("is_carousel_item", "true")
	default:
		return nil, fmt.Errorf("unknown container variant %s", v)
	}
	setIf("caption", p.Caption)
	return form, nil
}

// --- Status polling ---

// ContainerStatus returns the processing state of a container. The read is
// retried because the endpoint intermittently returns empty bodies.
func (c *Client) ContainerStatus(ctx context.Context, containerID string) (platform.Container, error) {
	return retry.Do(ctx, c.retry, func(ctx context.Context) (platform.Container, error) {
		raw, err := c.api.Get(ctx, "/"+graph.PathID(containerID), url.Values{"fields": {"status_code,status"}})
		if err != nil {
			return platform.Container{}, fmt.Errorf("container %s status: %w", containerID, err)
		}
		resp, err := jsonutil.Decode[containerStatusResponse](raw)
		if err != nil {
			return platform.Container{}, fmt.Errorf("container %s status: %w", containerID, err)
		}
		out := platform.Container{ID: containerID, Status: platform.ParseStatus(resp.StatusCode)}
		if out.Status == platform.StatusError || out.Status == platform.StatusExpired {
			out.ErrorMessage = resp.Status
		}
		return out, nil
	})
}

// --- Publishing ---

// Publish publishes a finished container and returns the media object.
func (c *Client) Publish(ctx context.Context, igUserID, containerID string) (*PublishResponse, error) {
	raw, err := c.api.Post(ctx, "/"+graph.PathID(igUserID)+"/media_publish", nil, url.Values{"creation_id": {containerID}})
	if err != nil {
		return nil, fmt.Errorf("publish container %s: %w", containerID, err)
	}
	resp, err := jsonutil.Decode[PublishResponse](raw)
	if err != nil || resp.ID == "" {
		return nil, &platform.PublishError{Platform: platform.Instagram, ContainerID: containerID, Raw: jsonutil.Preview(raw)}
	}
	return &resp, nil
}

// Permalink returns the public URL of a published media object, or "" when
// the platform does not expose one (stories, for instance).
func (c *Client) Permalink(ctx context.Context, mediaID string) (string, error) {
	return retry.Do(ctx, c.retry, func(ctx context.Context) (string, error) {
		raw, err := c.api.Get(ctx, "/"+graph.PathID(mediaID), url.Values{"fields": {"permalink"}})
		if err != nil {
			return "", fmt.Errorf("media %s permalink: %w", mediaID, err)
		}
		resp, err := jsonutil.Decode[permalinkResponse](raw)
		if err != nil {
			return "", fmt.Errorf("media %s permalink: %w", mediaID, err)
		}
		return resp.Permalink, nil
	})
}
