package mediaref

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePresigner struct {
	calls   int
	bucket  string
	key     string
	expires time.Duration
	err     error
}

func (f *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var o s3.PresignOptions
	for _, fn := range opts {
		fn(&o)
	}
	f.bucket, f.key, f.expires = aws.ToString(in.Bucket), aws.ToString(in.Key), o.Expires
	return &v4.PresignedHTTPRequest{URL: "https://signed.example/" + f.key}, nil
}

func TestParseS3(t *testing.T) {
	tests := []struct {
		ref, bucket, key string
		ok               bool
	}{
		{"s3://media/a/b.jpg", "media", "a/b.jpg", true},
		{"s3://media/", "", "", false},
		{"s3://media", "", "", false},
		{"https://cdn.example/x.jpg", "", "", false},
	}
	for _, tt := range tests {
		b, k, ok := ParseS3(tt.ref)
		if b != tt.bucket || k != tt.key || ok != tt.ok {
			t.Errorf("ParseS3(%q) = %q, %q, %v", tt.ref, b, k, ok)
		}
	}
}

func TestS3Resolver_Presigns(t *testing.T) {
	f := &fakePresigner{}
	r := NewS3Resolver(f, 0)
	got, err := r.Resolve(context.Background(), "s3://media/trip/1.mp4")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "https://signed.example/trip/1.mp4" {
		t.Errorf("got %q", got)
	}
	if f.bucket != "media" || f.key != "trip/1.mp4" || f.expires != DefaultExpiry {
		t.Errorf("presign args = %q %q %v", f.bucket, f.key, f.expires)
	}
}

func TestS3Resolver_PassThrough(t *testing.T) {
	f := &fakePresigner{}
	got, err := NewS3Resolver(f, time.Minute).Resolve(context.Background(), "https://cdn.example/x.jpg")
	if err != nil || got != "https://cdn.example/x.jpg" {
		t.Errorf("Resolve = %q, %v", got, err)
	}
	if f.calls != 0 {
		t.Errorf("presigner called %d times", f.calls)
	}
}

func TestS3Resolver_Errors(t *testing.T) {
	if _, err := NewS3Resolver(&fakePresigner{}, 0).Resolve(context.Background(), "s3://bucket-only"); err == nil {
		t.Error("expected error for reference without key")
	}
	f := &fakePresigner{err: errors.New("no credentials")}
	if _, err := NewS3Resolver(f, 0).Resolve(context.Background(), "s3://media/x.jpg"); err == nil {
		t.Error("expected presign error")
	}
}
