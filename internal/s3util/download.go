// Package s3util provides the S3 helpers shared by the pipeline Lambda,
// the upload front end and the CLI.
package s3util

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"
)

// MaxObjectBytes bounds how much of an object is read into memory. Exam
// photos are a few megabytes; anything larger is not a question image.
const MaxObjectBytes = 20 << 20

var (
	// ErrObjectNotFound is returned when the bucket or key does not exist.
	ErrObjectNotFound = errors.New("object not found")

	// ErrObjectTooLarge is returned when an object exceeds MaxObjectBytes.
	ErrObjectTooLarge = errors.New("object too large")
)

// ObjectGetter is the subset of *s3.Client used to read objects.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Object is an S3 object read fully into memory.
type Object struct {
	Bucket      string
	Key         string
	ContentType string
	Body        []byte
}

// FetchObject reads an object into memory.
func FetchObject(ctx context.Context, client ObjectGetter, bucket, key string) (*Object, error) {
	log.Debug().Str("bucket", bucket).Str("key", key).Msg("Fetching object from S3")
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3://%s/%s: %w", bucket, key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("S3 GetObject s3://%s/%s: %w", bucket, key, err)
	}
	defer result.Body.Close()

	body, err := io.ReadAll(io.LimitReader(result.Body, MaxObjectBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", bucket, key, err)
	}
	if len(body) > MaxObjectBytes {
		return nil, fmt.Errorf("s3://%s/%s: %w (limit %d bytes)", bucket, key, ErrObjectTooLarge, MaxObjectBytes)
	}

	obj := &Object{Bucket: bucket, Key: key, Body: body}
	if result.ContentType != nil {
		obj.ContentType = *result.ContentType
	}
	log.Debug().Str("key", key).Int("size", len(body)).Str("contentType", obj.ContentType).Msg("Object fetched")
	return obj, nil
}

// Fetcher binds FetchObject to a client.
type Fetcher struct {
	Client ObjectGetter
}

// FetchObject reads bucket/key through the bound client.
func (f Fetcher) FetchObject(ctx context.Context, bucket, key string) (*Object, error) {
	return FetchObject(ctx, f.Client, bucket, key)
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nsb *s3types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return true
		}
	}
	return false
}
