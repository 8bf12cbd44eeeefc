package publish

import "github.com/fpang/meta-publisher/internal/platform"

// Result is the normalized outcome of one job. Fields other pipeline
// stages key off of are stable. TimedOut is set when polling gave up
// before a terminal status.
type Result struct {
	ID            string                     `json:"id,omitempty"`
	Platform      platform.Name              `json:"platform"`
	Type          platform.ContentType       `json:"type"`
	CreationID    string                     `json:"creationId,omitempty"`
	VideoID       string                     `json:"videoId,omitempty"`
	Children      []string                   `json:"children,omitempty"`
	ChildStatuses map[string]platform.Status `json:"childStatuses,omitempty"`
	Status        platform.Status            `json:"status,omitempty"`
	ErrorMessage  string                     `json:"errorMessage,omitempty"`
	TimedOut      bool                       `json:"timedOut,omitempty"`
	Published     bool                       `json:"published"`
	PublishResult *PublishResponse           `json:"publishResult,omitempty"`
	Permalink     string                     `json:"permalink,omitempty"`
}

// PublishResponse is the finalized object returned by the platform.
type PublishResponse struct {
	ID     string `json:"id,omitempty"`
	PostID string `json:"postId,omitempty"`
}

// applyOutcome copies the last observed container state into r.
func (r *Result) applyOutcome(c platform.Container, timedOut bool) {
	r.Status = c.Status
	r.ErrorMessage = c.ErrorMessage
	r.TimedOut = timedOut
}
