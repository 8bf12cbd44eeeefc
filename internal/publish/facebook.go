package publish

import (
	"context"
	"fmt"

	"github.com/fpang/meta-publisher/internal/facebook"
	"github.com/fpang/meta-publisher/internal/platform"
)

// pageID returns the Facebook page a job targets.
func pageID(job Job) string {
	switch j := job.(type) {
	case FBPhoto:
		return j.PageID
	case FBVideo:
		return j.PageID
	case FBReel:
		return j.PageID
	case FBStoryPhoto:
		return j.PageID
	case FBStoryVideo:
		return j.PageID
	}
	return ""
}

// runFacebook resolves the page-scoped token first; every call after that
// goes through the returned Page and authenticates with that token.
func (r *jobRun) runFacebook(ctx context.Context) (*Result, error) {
	page, err := r.o.facebook.Page(ctx, pageID(r.job))
	if err != nil {
		return nil, err
	}

	switch j := r.job.(type) {
	case FBPhoto:
		return r.fbPhoto(ctx, page, j)
	case FBVideo:
		return r.fbVideo(ctx, page, j)
	case FBReel:
		return r.fbReel(ctx, page, j)
	case FBStoryPhoto:
		return r.fbStoryPhoto(ctx, page, j)
	case FBStoryVideo:
		return r.fbStoryVideo(ctx, page, j)
	}
	return nil, fmt.Errorf("facebook: unexpected job type %T", r.job)
}

func (r *jobRun) fbPhoto(ctx context.Context, page *facebook.Page, j FBPhoto) (*Result, error) {
	u, err := r.resolve(ctx, j.ImageURL)
	if err != nil {
		return nil, err
	}
	params := facebook.PhotoParams{URL: u, Caption: j.Caption}
	if !r.cfg.AutoPublish {
		params.Published = new(bool)
	}
	photo, err := page.PublishPhoto(ctx, params)
	if err != nil {
		return nil, err
	}
	r.created(ctx, photo.ID, RoleContainer)

	res := &Result{
		Platform:      platform.Facebook,
		Type:          platform.ContentImage,
		CreationID:    photo.ID,
		Status:        platform.StatusFinished,
		Published:     r.cfg.AutoPublish,
		PublishResult: &PublishResponse{ID: photo.ID, PostID: photo.PostID},
	}
	if res.Published {
		r.emit(ctx, Event{Kind: EventPublished, ContainerID: photo.ID})
		target := photo.PostID
		if target == "" {
			target = photo.ID
		}
		res.Permalink = r.permalink(ctx, target, page.Permalink)
	}
	return res, nil
}

func (r *jobRun) fbVideo(ctx context.Context, page *facebook.Page, j FBVideo) (*Result, error) {
	u, err := r.resolve(ctx, j.VideoURL)
	if err != nil {
		return nil, err
	}
	videoID, err := page.CreateVideo(ctx, facebook.VideoParams{FileURL: u, Title: j.Title, Description: j.Description})
	if err != nil {
		return nil, err
	}
	r.created(ctx, videoID, RoleVideo)
	return r.fbAwaitVideo(ctx, page, &Result{Platform: platform.Facebook, Type: platform.ContentVideo, VideoID: videoID}, true)
}

func (r *jobRun) fbReel(ctx context.Context, page *facebook.Page, j FBReel) (*Result, error) {
	s, err := r.fbUpload(ctx, page, facebook.TargetReel, j.VideoURL)
	if err != nil {
		return nil, err
	}
	fin, err := page.FinishReel(ctx, s.VideoID, j.Description, r.cfg.AutoPublish)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Platform:      platform.Facebook,
		Type:          platform.ContentReel,
		VideoID:       s.VideoID,
		PublishResult: &PublishResponse{ID: s.VideoID, PostID: fin.PostID},
	}
	return r.fbAwaitVideo(ctx, page, res, r.cfg.AutoPublish)
}

func (r *jobRun) fbStoryPhoto(ctx context.Context, page *facebook.Page, j FBStoryPhoto) (*Result, error) {
	u, err := r.resolve(ctx, j.ImageURL)
	if err != nil {
		return nil, err
	}
	photo, err := page.PublishPhoto(ctx, facebook.PhotoParams{URL: u, Published: new(bool)})
	if err != nil {
		return nil, err
	}
	r.created(ctx, photo.ID, RoleContainer)

	res := &Result{Platform: platform.Facebook, Type: platform.ContentStory, CreationID: photo.ID, Status: platform.StatusFinished}
	if !r.cfg.AutoPublish {
		return res, nil
	}
	story, err := page.PublishPhotoStory(ctx, photo.ID)
	if err != nil {
		return nil, err
	}
	r.emit(ctx, Event{Kind: EventPublished, ContainerID: photo.ID})
	res.Published = true
	res.PublishResult = &PublishResponse{ID: photo.ID, PostID: story.PostID}
	if story.PostID != "" {
		res.Permalink = r.permalink(ctx, story.PostID, page.Permalink)
	}
	return res, nil
}

// fbStoryVideo uploads the video and, with AutoPublish on, finishes the
// story. Without AutoPublish the upload is left unfinished and only its
// processing state is reported.
func (r *jobRun) fbStoryVideo(ctx context.Context, page *facebook.Page, j FBStoryVideo) (*Result, error) {
	s, err := r.fbUpload(ctx, page, facebook.TargetVideoStory, j.VideoURL)
	if err != nil {
		return nil, err
	}
	res := &Result{Platform: platform.Facebook, Type: platform.ContentStory, VideoID: s.VideoID}
	if r.cfg.AutoPublish {
		fin, err := page.FinishVideoStory(ctx, s.VideoID)
		if err != nil {
			return nil, err
		}
		res.PublishResult = &PublishResponse{ID: s.VideoID, PostID: fin.PostID}
	}
	return r.fbAwaitVideo(ctx, page, res, r.cfg.AutoPublish)
}

// fbUpload runs the start and upload phases, then waits the configured
// finish delay.
func (r *jobRun) fbUpload(ctx context.Context, page *facebook.Page, target facebook.UploadTarget, ref string) (*facebook.UploadSession, error) {
	u, err := r.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	s, err := page.StartUpload(ctx, target)
	if err != nil {
		return nil, err
	}
	r.created(ctx, s.VideoID, RoleVideo)
	if err := page.UploadHosted(ctx, s, u); err != nil {
		return nil, err
	}
	if err := sleep(ctx, r.o.finishDelay); err != nil {
		return nil, err
	}
	return s, nil
}

// fbAwaitVideo polls res.VideoID with the page token. The video counts as
// published when publish is set and processing finished in time.
func (r *jobRun) fbAwaitVideo(ctx context.Context, page *facebook.Page, res *Result, publish bool) (*Result, error) {
	out, err := r.await(ctx, res.VideoID, page.VideoStatus)
	if err != nil {
		return nil, err
	}
	res.applyOutcome(out.Value, out.TimedOut())
	if !publish || !ready(out) {
		return res, nil
	}
	r.emit(ctx, Event{Kind: EventPublished, ContainerID: res.VideoID})
	res.Published = true
	if res.PublishResult == nil {
		res.PublishResult = &PublishResponse{ID: res.VideoID}
	}
	res.Permalink = r.permalink(ctx, res.VideoID, page.Permalink)
	return res, nil
}
