// Package mediaref turns media references in job descriptors into URLs the
// Graph API can fetch. s3://bucket/key references are presigned; every
// other reference passes through unchanged.
package mediaref

import (
	"context"
	"fmt"
	"strings"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// DefaultExpiry is how long a presigned media URL stays valid. It has to
// outlive the platform's asynchronous fetch of the media.
const DefaultExpiry = time.Hour

const scheme = "s3://"

// Presigner is the subset of *s3.PresignClient used here.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Resolver presigns s3:// references.
type S3Resolver struct {
	presigner Presigner
	expiry    time.Duration
}

func NewS3Resolver(p Presigner, expiry time.Duration) *S3Resolver {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &S3Resolver{presigner: p, expiry: expiry}
}

// ParseS3 splits an s3://bucket/key reference. ok is false for anything
// else, including references without a key.
func ParseS3(ref string) (bucket, key string, ok bool) {
	if !strings.HasPrefix(ref, scheme) {
		return "", "", false
	}
	bucket, key, found := strings.Cut(strings.TrimPrefix(ref, scheme), "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

func (r *S3Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	if !strings.HasPrefix(ref, scheme) {
		return ref, nil
	}
	bucket, key, ok := ParseS3(ref)
	if !ok {
		return "", fmt.Errorf("invalid S3 reference %q: expected s3://bucket/key", ref)
	}
	result, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket, Key: &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = r.expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject %s/%s: %w", bucket, key, err)
	}
	log.Debug().Str("bucket", bucket).Str("key", key).Dur("expiry", r.expiry).Msg("Presigned media URL")
	return result.URL, nil
}
