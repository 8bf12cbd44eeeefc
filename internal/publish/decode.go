package publish

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fpang/meta-publisher/internal/jsonutil"
	"github.com/fpang/meta-publisher/internal/platform"
)

// descriptor is the wire form of a job. Every field any operation uses is
// listed; DecodeJob picks the ones the named operation needs.
type descriptor struct {
	Resource  string `json:"resource"`
	Platform  string `json:"platform"`
	Operation string `json:"operation"`

	ID          string   `json:"id"`
	PollSec     *float64 `json:"pollSec"`
	MaxWaitSec  *float64 `json:"maxWaitSec"`
	AutoPublish *bool    `json:"autoPublish"`

	IGUserID      string           `json:"igUserId"`
	MediaURL      string           `json:"mediaUrl"`
	VideoURL      string           `json:"videoUrl"`
	ImageURL      string           `json:"imageUrl"`
	Caption       string           `json:"caption"`
	CoverURL      string           `json:"coverUrl"`
	ThumbOffsetMs *int             `json:"thumbOffsetMs"`
	ShareToFeed   *bool            `json:"shareToFeed"`
	StoryKind     string           `json:"storyKind"`
	Kind          string           `json:"kind"`
	Items         []itemDescriptor `json:"items"`

	PageID      string `json:"pageId"`
	Title       string `json:"title"`
	Description string `json:"description"`

	ThUserID   string `json:"thUserId"`
	UserID     string `json:"userId"`
	Text       string `json:"text"`
	AltText    string `json:"altText"`
	ReplyToID  string `json:"replyToId"`
	TopicTag   string `json:"topicTag"`
	LocationID string `json:"locationId"`
}

type itemDescriptor struct {
	Type    string `json:"type"`
	URL     string `json:"url"`
	AltText string `json:"altText"`
}

// envelope is the {"data":[...],"count":N} shape produced by descriptor
// generators.
type envelope struct {
	Data  []json.RawMessage `json:"data"`
	Count *int              `json:"count"`
}

// SplitDescriptors accepts a single descriptor object, an array of them,
// or a {"data":[...]} envelope and returns the individual descriptors.
func SplitDescriptors(raw []byte) ([]json.RawMessage, error) {
	elems, err := jsonutil.SplitArray(raw)
	if err != nil {
		return nil, fmt.Errorf("parse job descriptors: %w", err)
	}
	if len(elems) == 1 && !jsonutil.IsArray(raw) {
		if env, ok := asEnvelope(elems[0]); ok {
			return env.Data, nil
		}
	}
	return elems, nil
}

func asEnvelope(raw json.RawMessage) (envelope, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return envelope{}, false
	}
	data, ok := fields["data"]
	if !ok || !jsonutil.IsArray(data) {
		return envelope{}, false
	}
	if _, hasOp := fields["operation"]; hasOp {
		return envelope{}, false
	}
	env, err := jsonutil.Decode[envelope](raw)
	if err != nil {
		return envelope{}, false
	}
	return env, true
}

// ParseJobs decodes every descriptor in raw with defaults applied. The
// first invalid descriptor fails the whole parse with a JobError carrying
// its index and whatever platform and operation it named.
func ParseJobs(raw []byte, defaults Common) ([]Job, error) {
	descs, err := SplitDescriptors(raw)
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(descs))
	for i, d := range descs {
		job, err := DecodeJobWithDefaults(d, defaults)
		if err != nil {
			return nil, decodeError(i, d, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// operationPlatforms maps every supported operation to its platform.
var operationPlatforms = map[Operation]platform.Name{
	OpPublishImage:    platform.Instagram,
	OpPublishVideo:    platform.Instagram,
	OpPublishReel:     platform.Instagram,
	OpPublishStory:    platform.Instagram,
	OpPublishCarousel: platform.Instagram,
	OpFbPhoto:         platform.Facebook,
	OpFbVideo:         platform.Facebook,
	OpFbReel:          platform.Facebook,
	OpFbStoryPhoto:    platform.Facebook,
	OpFbStoryVideo:    platform.Facebook,
	OpThreadsText:     platform.Threads,
	OpThreadsImage:    platform.Threads,
	OpThreadsVideo:    platform.Threads,
	OpThreadsCarousel: platform.Threads,
}

// describe returns the platform and operation a descriptor names, each
// empty unless it is recognized. It never fails; raw that does not decode
// names nothing.
func describe(raw json.RawMessage) (platform.Name, Operation) {
	var d struct {
		Resource  string `json:"resource"`
		Platform  string `json:"platform"`
		Operation string `json:"operation"`
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return "", ""
	}
	resource := strings.ToLower(strings.TrimSpace(d.Resource))
	if resource == "" {
		resource = strings.ToLower(strings.TrimSpace(d.Platform))
	}
	var p platform.Name
	switch name := platform.Name(resource); name {
	case platform.Instagram, platform.Facebook, platform.Threads:
		p = name
	default:
		return "", ""
	}
	op := Operation(d.Operation)
	if operationPlatforms[op] != p {
		return p, ""
	}
	return p, op
}

// decodeError wraps a descriptor decode failure at index with the platform
// and operation the descriptor named.
func decodeError(index int, raw json.RawMessage, err error) *JobError {
	p, op := describe(raw)
	return &JobError{Index: index, Platform: p, Operation: op, Err: err}
}

// DecodeJob converts one descriptor into its typed, validated Job.
// Unknown resource or operation values yield UnsupportedOperationError.
func DecodeJob(raw json.RawMessage) (Job, error) {
	return DecodeJobWithDefaults(raw, DefaultCommon())
}

// DecodeJobWithDefaults is DecodeJob with defaults applied to the common
// fields a descriptor omits.
func DecodeJobWithDefaults(raw json.RawMessage, defaults Common) (Job, error) {
	var d descriptor
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&d); err != nil {
		return nil, fmt.Errorf("invalid job descriptor: %w (text: %s)", err, jsonutil.Preview(raw))
	}

	resource := strings.ToLower(strings.TrimSpace(d.Resource))
	if resource == "" {
		resource = strings.ToLower(strings.TrimSpace(d.Platform))
	}

	c, err := d.common(defaults)
	if err != nil {
		return nil, err
	}

	var job Job
	switch platform.Name(resource) {
	case platform.Instagram:
		job, err = d.instagramJob(c)
	case platform.Facebook:
		job, err = d.facebookJob(c)
	case platform.Threads:
		job, err = d.threadsJob(c)
	default:
		return nil, &UnsupportedOperationError{Resource: resource}
	}
	if err != nil {
		return nil, err
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

func (d descriptor) common(defaults Common) (Common, error) {
	c := defaults
	c.ID = d.ID
	op := Operation(d.Operation)
	if d.PollSec != nil {
		v, err := seconds(op, "pollSec", *d.PollSec)
		if err != nil {
			return c, err
		}
		c.PollInterval = v
	}
	if d.MaxWaitSec != nil {
		v, err := seconds(op, "maxWaitSec", *d.MaxWaitSec)
		if err != nil {
			return c, err
		}
		c.MaxWait = v
	}
	if d.AutoPublish != nil {
		c.AutoPublish = *d.AutoPublish
	}
	return c, nil
}

// maxSeconds is the largest number of seconds a time.Duration can hold.
const maxSeconds = float64(math.MaxInt64) / float64(time.Second)

func seconds(op Operation, field string, v float64) (time.Duration, error) {
	if v < 0 || math.IsNaN(v) {
		return 0, &ValidationError{Operation: op, Field: field, Reason: "must be a non-negative number of seconds"}
	}
	if v >= maxSeconds {
		return 0, &ValidationError{Operation: op, Field: field, Reason: fmt.Sprintf("is too large (max %.0f seconds)", maxSeconds)}
	}
	return time.Duration(v * float64(time.Second)), nil
}

func (d descriptor) items() []CarouselItem {
	out := make([]CarouselItem, 0, len(d.Items))
	for _, it := range d.Items {
		out = append(out, CarouselItem{
			Type:    MediaKind(strings.ToLower(strings.TrimSpace(it.Type))),
			URL:     it.URL,
			AltText: it.AltText,
		})
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (d descriptor) instagramJob(c Common) (Job, error) {
	switch Operation(d.Operation) {
	case OpPublishImage:
		return IGImage{Common: c, IGUserID: d.IGUserID, MediaURL: firstNonEmpty(d.MediaURL, d.ImageURL), Caption: d.Caption}, nil
	case OpPublishVideo:
		return IGVideo{Common: c, IGUserID: d.IGUserID, MediaURL: firstNonEmpty(d.MediaURL, d.VideoURL), Caption: d.Caption, CoverURL: d.CoverURL}, nil
	case OpPublishReel:
		return IGReel{
			Common: c, IGUserID: d.IGUserID, VideoURL: firstNonEmpty(d.VideoURL, d.MediaURL),
			Caption: d.Caption, CoverURL: d.CoverURL, ThumbOffsetMs: d.ThumbOffsetMs, ShareToFeed: d.ShareToFeed,
		}, nil
	case OpPublishStory:
		kind := MediaKind(strings.ToLower(firstNonEmpty(d.StoryKind, d.Kind)))
		media := d.MediaURL
		if kind == MediaVideo {
			media = firstNonEmpty(media, d.VideoURL)
		} else {
			media = firstNonEmpty(media, d.ImageURL)
		}
		return IGStory{Common: c, IGUserID: d.IGUserID, MediaURL: media, Kind: kind, Caption: d.Caption}, nil
	case OpPublishCarousel:
		return IGCarousel{Common: c, IGUserID: d.IGUserID, Items: d.items(), Caption: d.Caption}, nil
	}
	return nil, &UnsupportedOperationError{Resource: string(platform.Instagram), Operation: d.Operation}
}

func (d descriptor) facebookJob(c Common) (Job, error) {
	switch Operation(d.Operation) {
	case OpFbPhoto:
		return FBPhoto{Common: c, PageID: d.PageID, ImageURL: firstNonEmpty(d.ImageURL, d.MediaURL), Caption: d.Caption}, nil
	case OpFbVideo:
		return FBVideo{Common: c, PageID: d.PageID, VideoURL: firstNonEmpty(d.VideoURL, d.MediaURL), Title: d.Title, Description: d.Description}, nil
	case OpFbReel:
		return FBReel{Common: c, PageID: d.PageID, VideoURL: firstNonEmpty(d.VideoURL, d.MediaURL), Description: firstNonEmpty(d.Description, d.Caption)}, nil
	case OpFbStoryPhoto:
		return FBStoryPhoto{Common: c, PageID: d.PageID, ImageURL: firstNonEmpty(d.ImageURL, d.MediaURL)}, nil
	case OpFbStoryVideo:
		return FBStoryVideo{Common: c, PageID: d.PageID, VideoURL: firstNonEmpty(d.VideoURL, d.MediaURL)}, nil
	}
	return nil, &UnsupportedOperationError{Resource: string(platform.Facebook), Operation: d.Operation}
}

func (d descriptor) threadsJob(c Common) (Job, error) {
	user := firstNonEmpty(d.ThUserID, d.UserID)
	opts := ThreadsOptions{ReplyToID: d.ReplyToID, TopicTag: d.TopicTag, LocationID: d.LocationID}
	switch Operation(d.Operation) {
	case OpThreadsText:
		return ThreadsText{Common: c, ThreadsOptions: opts, UserID: user, Text: d.Text}, nil
	case OpThreadsImage:
		return ThreadsImage{Common: c, ThreadsOptions: opts, UserID: user, ImageURL: firstNonEmpty(d.ImageURL, d.MediaURL), Text: d.Text, AltText: d.AltText}, nil
	case OpThreadsVideo:
		return ThreadsVideo{Common: c, ThreadsOptions: opts, UserID: user, VideoURL: firstNonEmpty(d.VideoURL, d.MediaURL), Text: d.Text, AltText: d.AltText}, nil
	case OpThreadsCarousel:
		return ThreadsCarousel{Common: c, UserID: user, Items: d.items(), Text: d.Text}, nil
	}
	return nil, &UnsupportedOperationError{Resource: string(platform.Threads), Operation: d.Operation}
}
