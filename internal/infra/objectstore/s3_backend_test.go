//go:build !integration

package objectstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"vip-key-shop/internal/domain"
)

// fakeS3 honours If-Match / If-None-Match the way S3 does.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func etag(b []byte) string {
	sum := md5.Sum(b)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data)), ETag: aws.String(etag(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	cur, exists := f.objects[key]
	precondition := &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}
	if in.IfNoneMatch != nil && exists {
		return nil, precondition
	}
	if in.IfMatch != nil && (!exists || etag(cur) != aws.ToString(in.IfMatch)) {
		return nil, precondition
	}
	data, _ := io.ReadAll(in.Body)
	f.objects[key] = data
	return &s3.PutObjectOutput{ETag: aws.String(etag(data))}, nil
}

func TestS3Backend_ConditionalWrites(t *testing.T) {
	fake := newFakeS3()
	b := NewS3Backend(fake, "bucket", "/data/")
	ctx := context.Background()

	if _, err := b.Read(ctx, "keys"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	v1, err := b.Write(ctx, "keys", []byte("[]"), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := fake.objects["data/keys.json"]; !ok {
		t.Fatalf("object stored under unexpected key: %v", fake.objects)
	}
	if _, err := b.Write(ctx, "keys", []byte("[1]"), ""); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("second create should conflict, got %v", err)
	}

	v2, err := b.Write(ctx, "keys", []byte("[1]"), v1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := b.Write(ctx, "keys", []byte("[2]"), v1); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("stale etag should conflict, got %v", err)
	}

	doc, err := b.Read(ctx, "keys")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(doc.Data) != "[1]" || doc.Version != v2 {
		t.Errorf("unexpected document %q version %q", doc.Data, doc.Version)
	}
}

func TestS3Backend_ReadErrorIsNotNotFound(t *testing.T) {
	fake := newFakeS3()
	fake.getErr = &smithy.GenericAPIError{Code: "AccessDenied"}
	b := NewS3Backend(fake, "bucket", "")

	_, err := b.Read(context.Background(), "keys")
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected a non-NotFound error, got %v", err)
	}
}
