package publish

import (
	"context"
	"fmt"

	"github.com/fpang/meta-publisher/internal/instagram"
	"github.com/fpang/meta-publisher/internal/platform"
)

func (r *jobRun) runInstagram(ctx context.Context) (*Result, error) {
	switch j := r.job.(type) {
	case IGImage:
		u, err := r.resolve(ctx, j.MediaURL)
		if err != nil {
			return nil, err
		}
		return r.igSingle(ctx, j.IGUserID, platform.ContentImage, instagram.VariantImage,
			instagram.ContainerParams{URL: u, Caption: j.Caption})

	case IGVideo:
		u, err := r.resolve(ctx, j.MediaURL)
		if err != nil {
			return nil, err
		}
		cover, err := r.resolve(ctx, j.CoverURL)
		if err != nil {
			return nil, err
		}
		return r.igSingle(ctx, j.IGUserID, platform.ContentVideo, instagram.VariantVideo,
			instagram.ContainerParams{URL: u, Caption: j.Caption, CoverURL: cover})

	case IGReel:
		u, err := r.resolve(ctx, j.VideoURL)
		if err != nil {
			return nil, err
		}
		cover, err := r.resolve(ctx, j.CoverURL)
		if err != nil {
			return nil, err
		}
		return r.igSingle(ctx, j.IGUserID, platform.ContentReel, instagram.VariantReels,
			instagram.ContainerParams{URL: u, Caption: j.Caption, CoverURL: cover, ThumbOffsetMs: j.ThumbOffsetMs, ShareToFeed: j.ShareToFeed})

	case IGStory:
		u, err := r.resolve(ctx, j.MediaURL)
		if err != nil {
			return nil, err
		}
		v := instagram.VariantStoryImage
		if j.Kind == MediaVideo {
			v = instagram.VariantStoryVideo
		}
		return r.igSingle(ctx, j.IGUserID, platform.ContentStory, v,
			instagram.ContainerParams{URL: u, Caption: j.Caption})

	case IGCarousel:
		return r.igCarousel(ctx, j)
	}
	return nil, fmt.Errorf("instagram: unexpected job type %T", r.job)
}

func (r *jobRun) igSingle(ctx context.Context, igUserID string, ct platform.ContentType, v instagram.Variant, p instagram.ContainerParams) (*Result, error) {
	ig := r.o.instagram
	id, err := ig.CreateContainer(ctx, igUserID, v, p)
	if err != nil {
		return nil, err
	}
	r.created(ctx, id, RoleContainer)
	return r.igFinalize(ctx, igUserID, &Result{Platform: platform.Instagram, Type: ct, CreationID: id})
}

func (r *jobRun) igCarousel(ctx context.Context, j IGCarousel) (*Result, error) {
	ig := r.o.instagram
	create := func(ctx context.Context, i int) (string, error) {
		it := j.Items[i]
		u, err := r.resolve(ctx, it.URL)
		if err != nil {
			return "", err
		}
		v := instagram.VariantCarouselChildImage
		if it.Type == MediaVideo {
			v = instagram.VariantCarouselChildVideo
		}
		return ig.CreateContainer(ctx, j.IGUserID, v, instagram.ContainerParams{URL: u})
	}

	children, statuses, err := r.assembleChildren(ctx, len(j.Items), create, ig.ContainerStatus)
	if err != nil {
		return nil, err
	}

	parentID, err := ig.CreateContainer(ctx, j.IGUserID, instagram.VariantCarouselParent,
		instagram.ContainerParams{Children: children, Caption: j.Caption})
	if err != nil {
		return nil, err
	}
	r.created(ctx, parentID, RoleParent)
	return r.igFinalize(ctx, j.IGUserID, &Result{
		Platform:      platform.Instagram,
		Type:          platform.ContentCarousel,
		CreationID:    parentID,
		Children:      children,
		ChildStatuses: statuses,
	})
}

// igFinalize polls res.CreationID and publishes it when finished. With
// AutoPublish off the container is left finished but unpublished.
func (r *jobRun) igFinalize(ctx context.Context, igUserID string, res *Result) (*Result, error) {
	ig := r.o.instagram
	out, err := r.await(ctx, res.CreationID, ig.ContainerStatus)
	if err != nil {
		return nil, err
	}
	res.applyOutcome(out.Value, out.TimedOut())

	if !r.cfg.AutoPublish || !ready(out) {
		return res, nil
	}
	pub, err := ig.Publish(ctx, igUserID, res.CreationID)
	if err != nil {
		return nil, err
	}
	r.emit(ctx, Event{Kind: EventPublished, ContainerID: res.CreationID})
	res.Published = true
	res.PublishResult = &PublishResponse{ID: pub.ID}
	res.Permalink = r.permalink(ctx, pub.ID, ig.Permalink)
	return res, nil
}
