package s3util

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// ObjectPutter is the subset of *s3.Client used to write objects.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// UploadObject writes body under key. Every successful PUT into the
// question bucket emits the notification that starts the pipeline.
func UploadObject(ctx context.Context, client ObjectPutter, bucket, key string, body io.Reader, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:  &bucket,
		Key:     &key,
		Body:    body,
		Tagging: ProjectTagging(),
	}
	if contentType != "" {
		input.ContentType = &contentType
	}

	if _, err := client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("S3 PutObject s3://%s/%s: %w", bucket, key, err)
	}

	log.Info().Str("bucket", bucket).Str("key", key).Str("contentType", contentType).Msg("Object uploaded")
	return nil
}
