// Package publish sequences the platform adapters into complete publish
// operations: create container(s), wait for remote processing, publish,
// and fetch a permalink. Jobs are typed per operation and validated once
// before any network call is made.
package publish

import (
	"fmt"
	"time"

	"github.com/fpang/meta-publisher/internal/instagram"
	"github.com/fpang/meta-publisher/internal/platform"
	"github.com/fpang/meta-publisher/internal/poll"
	"github.com/fpang/meta-publisher/internal/threads"
)

// Operation is the operation name as it appears in job descriptors.
type Operation string

const (
	OpPublishImage    Operation = "publishImage"
	OpPublishVideo    Operation = "publishVideo"
	OpPublishReel     Operation = "publishReel"
	OpPublishStory    Operation = "publishStory"
	OpPublishCarousel Operation = "publishCarousel"

	OpFbPhoto      Operation = "publishFbPhoto"
	OpFbVideo      Operation = "publishFbVideo"
	OpFbReel       Operation = "publishFbReel"
	OpFbStoryPhoto Operation = "publishFbStoryPhoto"
	OpFbStoryVideo Operation = "publishFbStoryVideo"

	OpThreadsText     Operation = "threadsPublishText"
	OpThreadsImage    Operation = "threadsPublishImage"
	OpThreadsVideo    Operation = "threadsPublishVideo"
	OpThreadsCarousel Operation = "threadsPublishCarousel"
)

// Common holds the settings every job carries.
type Common struct {
	// ID is an optional caller-supplied identifier echoed into the result.
	ID           string
	PollInterval time.Duration
	MaxWait      time.Duration
	AutoPublish  bool
}

// DefaultCommon returns the settings used when a descriptor omits them.
func DefaultCommon() Common {
	return Common{
		PollInterval: poll.DefaultInterval,
		MaxWait:      poll.DefaultMaxWait,
		AutoPublish:  true,
	}
}

func (c Common) settings() Common { return c }

func (c Common) validate(op Operation) error {
	if c.PollInterval < 0 {
		return &ValidationError{Operation: op, Field: "pollSec", Reason: "must not be negative"}
	}
	if c.MaxWait < 0 {
		return &ValidationError{Operation: op, Field: "maxWaitSec", Reason: "must not be negative"}
	}
	return nil
}

// Job is one validated unit of work. The concrete types below are the
// only implementations.
type Job interface {
	Platform() platform.Name
	Operation() Operation
	Validate() error
	settings() Common
}

// MediaKind distinguishes image and video carousel items and stories.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// CarouselItem is one child of a carousel.
type CarouselItem struct {
	Type    MediaKind
	URL     string
	AltText string
}

// ValidationError names a missing or invalid job field.
type ValidationError struct {
	Operation Operation
	Field     string
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Operation, e.Field, e.Reason)
}

func required(op Operation, field, value string) error {
	if value == "" {
		return &ValidationError{Operation: op, Field: field, Reason: "is required"}
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func validateItems(op Operation, items []CarouselItem, min, max int) error {
	if len(items) < min || len(items) > max {
		return &ValidationError{Operation: op, Field: "items", Reason: fmt.Sprintf("must contain %d-%d entries, got %d", min, max, len(items))}
	}
	for i, it := range items {
		if it.Type != MediaImage && it.Type != MediaVideo {
			return &ValidationError{Operation: op, Field: fmt.Sprintf("items[%d].type", i), Reason: fmt.Sprintf("must be image or video, got %q", it.Type)}
		}
		if it.URL == "" {
			return &ValidationError{Operation: op, Field: fmt.Sprintf("items[%d].url", i), Reason: "is required"}
		}
	}
	return nil
}

// --- Instagram ---

type IGImage struct {
	Common
	IGUserID string
	MediaURL string
	Caption  string
}

func (IGImage) Platform() platform.Name { return platform.Instagram }
func (IGImage) Operation() Operation    { return OpPublishImage }
func (j IGImage) Validate() error {
	return firstErr(j.validate(OpPublishImage), required(OpPublishImage, "igUserId", j.IGUserID), required(OpPublishImage, "mediaUrl", j.MediaURL))
}

type IGVideo struct {
	Common
	IGUserID string
	MediaURL string
	Caption  string
	CoverURL string
}

func (IGVideo) Platform() platform.Name { return platform.Instagram }
func (IGVideo) Operation() Operation    { return OpPublishVideo }
func (j IGVideo) Validate() error {
	return firstErr(j.validate(OpPublishVideo), required(OpPublishVideo, "igUserId", j.IGUserID), required(OpPublishVideo, "mediaUrl", j.MediaURL))
}

type IGReel struct {
	Common
	IGUserID      string
	VideoURL      string
	Caption       string
	CoverURL      string
	ThumbOffsetMs *int
	ShareToFeed   *bool
}

func (IGReel) Platform() platform.Name { return platform.Instagram }
func (IGReel) Operation() Operation    { return OpPublishReel }
func (j IGReel) Validate() error {
	if err := firstErr(j.validate(OpPublishReel), required(OpPublishReel, "igUserId", j.IGUserID), required(OpPublishReel, "videoUrl", j.VideoURL)); err != nil {
		return err
	}
	if j.ThumbOffsetMs != nil && *j.ThumbOffsetMs < 0 {
		return &ValidationError{Operation: OpPublishReel, Field: "thumbOffsetMs", Reason: "must not be negative"}
	}
	return nil
}

type IGStory struct {
	Common
	IGUserID string
	MediaURL string
	Kind     MediaKind
	Caption  string
}

func (IGStory) Platform() platform.Name { return platform.Instagram }
func (IGStory) Operation() Operation    { return OpPublishStory }
func (j IGStory) Validate() error {
	if err := firstErr(j.validate(OpPublishStory), required(OpPublishStory, "igUserId", j.IGUserID), required(OpPublishStory, "mediaUrl", j.MediaURL)); err != nil {
		return err
	}
	if j.Kind != MediaImage && j.Kind != MediaVideo {
		return &ValidationError{Operation: OpPublishStory, Field: "storyKind", Reason: fmt.Sprintf("must be image or video, got %q", j.Kind)}
	}
	return nil
}

type IGCarousel struct {
	Common
	IGUserID string
	Items    []CarouselItem
	Caption  string
}

func (IGCarousel) Platform() platform.Name { return platform.Instagram }
func (IGCarousel) Operation() Operation    { return OpPublishCarousel }
func (j IGCarousel) Validate() error {
	return firstErr(j.validate(OpPublishCarousel), required(OpPublishCarousel, "igUserId", j.IGUserID),
		validateItems(OpPublishCarousel, j.Items, instagram.MinCarouselItems, instagram.MaxCarouselItems))
}

// --- Facebook ---

type FBPhoto struct {
	Common
	PageID   string
	ImageURL string
	Caption  string
}

func (FBPhoto) Platform() platform.Name { return platform.Facebook }
func (FBPhoto) Operation() Operation    { return OpFbPhoto }
func (j FBPhoto) Validate() error {
	return firstErr(j.validate(OpFbPhoto), required(OpFbPhoto, "pageId", j.PageID), required(OpFbPhoto, "imageUrl", j.ImageURL))
}

type FBVideo struct {
	Common
	PageID      string
	VideoURL    string
	Title       string
	Description string
}

func (FBVideo) Platform() platform.Name { return platform.Facebook }
func (FBVideo) Operation() Operation    { return OpFbVideo }
func (j FBVideo) Validate() error {
	return firstErr(j.validate(OpFbVideo), required(OpFbVideo, "pageId", j.PageID), required(OpFbVideo, "videoUrl", j.VideoURL))
}

type FBReel struct {
	Common
	PageID      string
	VideoURL    string
	Description string
}

func (FBReel) Platform() platform.Name { return platform.Facebook }
func (FBReel) Operation() Operation    { return OpFbReel }
func (j FBReel) Validate() error {
	return firstErr(j.validate(OpFbReel), required(OpFbReel, "pageId", j.PageID), required(OpFbReel, "videoUrl", j.VideoURL))
}

type FBStoryPhoto struct {
	Common
	PageID   string
	ImageURL string
}

func (FBStoryPhoto) Platform() platform.Name { return platform.Facebook }
func (FBStoryPhoto) Operation() Operation    { return OpFbStoryPhoto }
func (j FBStoryPhoto) Validate() error {
	return firstErr(j.validate(OpFbStoryPhoto), required(OpFbStoryPhoto, "pageId", j.PageID), required(OpFbStoryPhoto, "imageUrl", j.ImageURL))
}

type FBStoryVideo struct {
	Common
	PageID   string
	VideoURL string
}

func (FBStoryVideo) Platform() platform.Name { return platform.Facebook }
func (FBStoryVideo) Operation() Operation    { return OpFbStoryVideo }
func (j FBStoryVideo) Validate() error {
	return firstErr(j.validate(OpFbStoryVideo), required(OpFbStoryVideo, "pageId", j.PageID), required(OpFbStoryVideo, "videoUrl", j.VideoURL))
}

// --- Threads ---

// ThreadsOptions are the optional post attributes shared by single-media
// Threads posts.
type ThreadsOptions struct {
	ReplyToID  string
	TopicTag   string
	LocationID string
}

type ThreadsText struct {
	Common
	ThreadsOptions
	UserID string
	Text   string
}

func (ThreadsText) Platform() platform.Name { return platform.Threads }
func (ThreadsText) Operation() Operation    { return OpThreadsText }
func (j ThreadsText) Validate() error {
	return firstErr(j.validate(OpThreadsText), required(OpThreadsText, "thUserId", j.UserID), required(OpThreadsText, "text", j.Text))
}

type ThreadsImage struct {
	Common
	ThreadsOptions
	UserID   string
	ImageURL string
	Text     string
	AltText  string
}

func (ThreadsImage) Platform() platform.Name { return platform.Threads }
func (ThreadsImage) Operation() Operation    { return OpThreadsImage }
func (j ThreadsImage) Validate() error {
	return firstErr(j.validate(OpThreadsImage), required(OpThreadsImage, "thUserId", j.UserID), required(OpThreadsImage, "imageUrl", j.ImageURL))
}

type ThreadsVideo struct {
	Common
	ThreadsOptions
	UserID   string
	VideoURL string
	Text     string
	AltText  string
}

func (ThreadsVideo) Platform() platform.Name { return platform.Threads }
func (ThreadsVideo) Operation() Operation    { return OpThreadsVideo }
func (j ThreadsVideo) Validate() error {
	return firstErr(j.validate(OpThreadsVideo), required(OpThreadsVideo, "thUserId", j.UserID), required(OpThreadsVideo, "videoUrl", j.VideoURL))
}

type ThreadsCarousel struct {
	Common
	UserID string
	Items  []CarouselItem
	Text   string
}

func (ThreadsCarousel) Platform() platform.Name { return platform.Threads }
func (ThreadsCarousel) Operation() Operation    { return OpThreadsCarousel }
func (j ThreadsCarousel) Validate() error {
	return firstErr(j.validate(OpThreadsCarousel), required(OpThreadsCarousel, "thUserId", j.UserID),
		validateItems(OpThreadsCarousel, j.Items, threads.MinCarouselItems, threads.MaxCarouselItems))
}
