// Package platform holds the vocabulary shared by the Instagram, Facebook
// and Threads adapters: platform names, content types, container status
// values, and the creation/publish error types.
package platform

import "strings"

// Name identifies a publishing target.
type Name string

const (
	Instagram Name = "instagram"
	Facebook  Name = "facebook"
	Threads   Name = "threads"
)

// ContentType is the normalized kind of post a job produces.
type ContentType string

const (
	ContentImage    ContentType = "image"
	ContentVideo    ContentType = "video"
	ContentReel     ContentType = "reel"
	ContentStory    ContentType = "story"
	ContentCarousel ContentType = "carousel"
	ContentText     ContentType = "text"
)

// Status is a container processing state. Instagram and Facebook use
// IN_PROGRESS, FINISHED and ERROR; Threads adds PUBLISHED and EXPIRED.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusFinished   Status = "FINISHED"
	StatusPublished  Status = "PUBLISHED"
	StatusError      Status = "ERROR"
	StatusExpired    Status = "EXPIRED"
	StatusUnknown    Status = "UNKNOWN"
)

// ParseStatus normalizes a raw status string. Unrecognized values map to
// StatusUnknown; an empty value maps to StatusInProgress, since platforms
// omit the field while a container is still being ingested.
func ParseStatus(s string) Status {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusInProgress, StatusFinished, StatusPublished, StatusError, StatusExpired:
		return st
	case "":
		return StatusInProgress
	default:
		return StatusUnknown
	}
}

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinished, StatusPublished, StatusError, StatusExpired:
		return true
	}
	return false
}

// Ready reports whether the container can be referenced or published.
func (s Status) Ready() bool {
	return s == StatusFinished || s == StatusPublished
}

// Container is a server-side media handle and its last observed state.
type Container struct {
	ID           string `json:"id"`
	Status       Status `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}
