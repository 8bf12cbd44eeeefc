package platform

import (
	"errors"
	"fmt"
)

var (
	// ErrCreationFailed matches any CreationError.
	ErrCreationFailed = errors.New("container creation failed")
	// ErrPublishFailed matches any PublishError.
	ErrPublishFailed = errors.New("publish failed")
)

// CreationError means the platform accepted a create call but returned no
// usable id. Raw holds the response body.
type CreationError struct {
	Platform Name
	Variant  string
	Reason   string
	Raw      string
}

func (e *CreationError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "no id returned"
	}
	return fmt.Sprintf("%s create %s: %s (body: %s)", e.Platform, e.Variant, reason, e.Raw)
}

func (e *CreationError) Is(target error) bool {
	return target == ErrCreationFailed
}

// PublishError means a finalize call returned no id. The container stays
// created but unpublished.
type PublishError struct {
	Platform    Name
	ContainerID string
	Raw         string
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%s publish %s: no id returned (body: %s)", e.Platform, e.ContainerID, e.Raw)
}

func (e *PublishError) Is(target error) bool {
	return target == ErrPublishFailed
}
