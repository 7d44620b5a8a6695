package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog/log"
)

// UploadEvent identifies one newly created object.
type UploadEvent struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// Validate checks that both fields are present.
func (e UploadEvent) Validate() error {
	if e.Bucket == "" || e.Key == "" {
		return fmt.Errorf("bucket and key are required (bucket=%q key=%q)", e.Bucket, e.Key)
	}
	return nil
}

// FromS3Event builds an UploadEvent from the first notification record.
// S3 delivers one record per ObjectCreated notification; any extra records
// are logged and ignored rather than fanned out.
func FromS3Event(ev events.S3Event) (UploadEvent, error) {
	if len(ev.Records) == 0 {
		return UploadEvent{}, &StageError{Stage: StageIngress, Kind: ErrInvalidEvent, Err: errors.New("notification has no records")}
	}
	if len(ev.Records) > 1 {
		ignored := make([]string, 0, len(ev.Records)-1)
		for _, r := range ev.Records[1:] {
			ignored = append(ignored, r.S3.Object.Key)
		}
		log.Warn().Int("records", len(ev.Records)).Strs("ignoredKeys", ignored).Msg("Notification carried multiple records; processing the first only")
	}

	rec := ev.Records[0]
	key := rec.S3.Object.URLDecodedKey
	if key == "" && rec.S3.Object.Key != "" {
		// Keys arrive form-encoded ("my+exam.png" for "my exam.png").
		decoded, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			return UploadEvent{}, &StageError{Stage: StageIngress, Kind: ErrInvalidEvent, Err: fmt.Errorf("decode key %q: %w", rec.S3.Object.Key, err)}
		}
		key = decoded
	}

	out := UploadEvent{Bucket: rec.S3.Bucket.Name, Key: key}
	if err := out.Validate(); err != nil {
		return UploadEvent{}, &StageError{Stage: StageIngress, Kind: ErrInvalidEvent, Err: err}
	}
	return out, nil
}

// HandleS3Event is the Lambda entry for an S3 ObjectCreated notification.
func (p *Pipeline) HandleS3Event(ctx context.Context, ev events.S3Event) (*Outcome, error) {
	upload, err := FromS3Event(ev)
	if err != nil {
		log.Error().Err(err).Int("records", len(ev.Records)).Msg("Rejected S3 notification")
		return nil, err
	}
	return p.Process(ctx, upload)
}
