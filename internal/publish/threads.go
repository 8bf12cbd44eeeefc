package publish

import (
	"context"
	"fmt"

	"github.com/fpang/meta-publisher/internal/platform"
	"github.com/fpang/meta-publisher/internal/threads"
)

func (r *jobRun) runThreads(ctx context.Context) (*Result, error) {
	switch j := r.job.(type) {
	case ThreadsText:
		return r.thSingle(ctx, j.UserID, platform.ContentText, threads.VariantText, threads.ContainerParams{
			Text: j.Text, ReplyToID: j.ReplyToID, TopicTag: j.TopicTag, LocationID: j.LocationID,
		})

	case ThreadsImage:
		u, err := r.resolve(ctx, j.ImageURL)
		if err != nil {
			return nil, err
		}
		return r.thSingle(ctx, j.UserID, platform.ContentImage, threads.VariantImage, threads.ContainerParams{
			ImageURL: u, Text: j.Text, AltText: j.AltText, ReplyToID: j.ReplyToID, TopicTag: j.TopicTag, LocationID: j.LocationID,
		})

	case ThreadsVideo:
		u, err := r.resolve(ctx, j.VideoURL)
		if err != nil {
			return nil, err
		}
		return r.thSingle(ctx, j.UserID, platform.ContentVideo, threads.VariantVideo, threads.ContainerParams{
			VideoURL: u, Text: j.Text, AltText: j.AltText, ReplyToID: j.ReplyToID, TopicTag: j.TopicTag, LocationID: j.LocationID,
		})

	case ThreadsCarousel:
		return r.thCarousel(ctx, j)
	}
	return nil, fmt.Errorf("threads: unexpected job type %T", r.job)
}

func (r *jobRun) thSingle(ctx context.Context, userID string, ct platform.ContentType, v threads.Variant, p threads.ContainerParams) (*Result, error) {
	id, err := r.o.threads.CreateContainer(ctx, userID, v, p)
	if err != nil {
		return nil, err
	}
	r.created(ctx, id, RoleContainer)
	return r.thFinalize(ctx, userID, &Result{Platform: platform.Threads, Type: ct, CreationID: id})
}

func (r *jobRun) thCarousel(ctx context.Context, j ThreadsCarousel) (*Result, error) {
	th := r.o.threads
	create := func(ctx context.Context, i int) (string, error) {
		it := j.Items[i]
		u, err := r.resolve(ctx, it.URL)
		if err != nil {
			return "", err
		}
		if it.Type == MediaVideo {
			return th.CreateContainer(ctx, j.UserID, threads.VariantCarouselItemVideo, threads.ContainerParams{VideoURL: u, AltText: it.AltText})
		}
		return th.CreateContainer(ctx, j.UserID, threads.VariantCarouselItemImage, threads.ContainerParams{ImageURL: u, AltText: it.AltText})
	}

	children, statuses, err := r.assembleChildren(ctx, len(j.Items), create, th.ContainerStatus)
	if err != nil {
		return nil, err
	}

	parentID, err := th.CreateContainer(ctx, j.UserID, threads.VariantCarousel, threads.ContainerParams{Children: children, Text: j.Text})
	if err != nil {
		return nil, err
	}
	r.created(ctx, parentID, RoleParent)
	return r.thFinalize(ctx, j.UserID, &Result{
		Platform:      platform.Threads,
		Type:          platform.ContentCarousel,
		CreationID:    parentID,
		Children:      children,
		ChildStatuses: statuses,
	})
}

// thFinalize polls the container and publishes it once FINISHED or
// PUBLISHED.
func (r *jobRun) thFinalize(ctx context.Context, userID string, res *Result) (*Result, error) {
	th := r.o.threads
	out, err := r.await(ctx, res.CreationID, th.ContainerStatus)
	if err != nil {
		return nil, err
	}
	res.applyOutcome(out.Value, out.TimedOut())

	if !r.cfg.AutoPublish || !ready(out) {
		return res, nil
	}
	pub, err := th.Publish(ctx, userID, res.CreationID)
	if err != nil {
		return nil, err
	}
	r.emit(ctx, Event{Kind: EventPublished, ContainerID: res.CreationID})
	res.Published = true
	res.PublishResult = &PublishResponse{ID: pub.ID}
	res.Permalink = r.permalink(ctx, pub.ID, th.Permalink)
	return res, nil
}
