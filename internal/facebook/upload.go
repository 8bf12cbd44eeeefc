package facebook

import (
	"context"
	"fmt"
	"net/url"

	"github.com/fpang/meta-publisher/internal/jsonutil"
	"github.com/fpang/meta-publisher/internal/platform"
)

// UploadTarget selects the resumable-upload edge.
type UploadTarget string

const (
	TargetReel       UploadTarget = "video_reels"
	TargetVideoStory UploadTarget = "video_stories"
)

// UploadSession is the result of the start phase.
type UploadSession struct {
	Target    UploadTarget `json:"-"`
	VideoID   string       `json:"video_id"`
	UploadURL string       `json:"upload_url"`
}

// StartUpload opens a resumable upload on target. Both video_id and
// upload_url are required; without them no finish call can follow.
func (p *Page) StartUpload(ctx context.Context, target UploadTarget) (*UploadSession, error) {
	raw, err := p.api.Post(ctx, p.path(string(target)), nil, url.Values{"upload_phase": {"start"}})
	if err != nil {
		return nil, fmt.Errorf("start %s upload: %w", target, err)
	}
	s, err := jsonutil.Decode[UploadSession](raw)
	if err != nil {
		return nil, &platform.CreationError{Platform: platform.Facebook, Variant: string(target), Reason: err.Error(), Raw: jsonutil.Preview(raw)}
	}
	if s.VideoID == "" {
		return nil, &platform.CreationError{Platform: platform.Facebook, Variant: string(target), Reason: "no video_id returned from upload start", Raw: jsonutil.Preview(raw)}
	}
	if s.UploadURL == "" {
		return nil, &platform.CreationError{Platform: platform.Facebook, Variant: string(target), Reason: "no upload_url returned from upload start", Raw: jsonutil.Preview(raw)}
	}
	s.Target = target
	return &s, nil
}

type successResponse struct {
	Success bool   `json:"success"`
	PostID  string `json:"post_id,omitempty"`
}

// UploadHosted asks the upload host to fetch fileURL into the session. The
// request goes to the session's own upload URL with an OAuth header.
func (p *Page) UploadHosted(ctx context.Context, s *UploadSession, fileURL string) error {
	if fileURL == "" {
		return fmt.Errorf("upload %s: video URL is required", s.VideoID)
	}
	raw, err := p.api.Upload(ctx, s.UploadURL, map[string]string{"file_url": fileURL})
	if err != nil {
		return fmt.Errorf("upload %s: %w", s.VideoID, err)
	}
	resp, err := jsonutil.Decode[successResponse](raw)
	if err != nil {
		return fmt.Errorf("upload %s: %w", s.VideoID, err)
	}
	if !resp.Success {
		return &platform.CreationError{Platform: platform.Facebook, Variant: string(s.Target), Reason: "upload not accepted", Raw: jsonutil.Preview(raw)}
	}
	return nil
}

// FinishResponse is the result of the finish phase.
type FinishResponse struct {
	Success bool   `json:"success"`
	PostID  string `json:"postId,omitempty"`
}

// FinishReel completes a reel upload. With publish=false the reel is saved
// as a draft (video_state=DRAFT).
func (p *Page) FinishReel(ctx context.Context, videoID, description string, publish bool) (*FinishResponse, error) {
	state := "PUBLISHED"
	if !publish {
		state = "DRAFT"
	}
	form := url.Values{
		"upload_phase": {"finish"},
		"video_id":     {videoID},
		"video_state":  {state},
	}
	if description != "" {
		form.Set("description", description)
	}
	return p.finish(ctx, TargetReel, videoID, form)
}

// FinishVideoStory completes a video story upload and posts the story.
func (p *Page) FinishVideoStory(ctx context.Context, videoID string) (*FinishResponse, error) {
	form := url.Values{
		"upload_phase": {"finish"},
		"video_id":     {videoID},
	}
	return p.finish(ctx, TargetVideoStory, videoID, form)
}

func (p *Page) finish(ctx context.Context, target UploadTarget, videoID string, form url.Values) (*FinishResponse, error) {
	raw, err := p.api.Post(ctx, p.path(string(target)), nil, form)
	if err != nil {
		return nil, fmt.Errorf("finish %s upload %s: %w", target, videoID, err)
	}
	resp, err := jsonutil.Decode[successResponse](raw)
	if err != nil || !resp.Success {
		return nil, &platform.PublishError{Platform: platform.Facebook, ContainerID: videoID, Raw: jsonutil.Preview(raw)}
	}
	return &FinishResponse{Success: true, PostID: resp.PostID}, nil
}

// PublishPhotoStory posts a previously staged (published=false) photo as a
// page story.
func (p *Page) PublishPhotoStory(ctx context.Context, photoID string) (*FinishResponse, error) {
	raw, err := p.api.Post(ctx, p.path("photo_stories"), nil, url.Values{"photo_id": {photoID}})
	if err != nil {
		return nil, fmt.Errorf("photo story %s: %w", photoID, err)
	}
	resp, err := jsonutil.Decode[successResponse](raw)
	if err != nil || !resp.Success {
		return nil, &platform.PublishError{Platform: platform.Facebook, ContainerID: photoID, Raw: jsonutil.Preview(raw)}
	}
	return &FinishResponse{Success: true, PostID: resp.PostID}, nil
}
