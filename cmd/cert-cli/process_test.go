package main

import (
	"bytes"
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpang/cert-teacher/internal/bedrock"
	"github.com/fpang/cert-teacher/internal/pipeline"
	"github.com/fpang/cert-teacher/internal/s3util"
	"github.com/fpang/cert-teacher/internal/store"
)

type pngObjects struct{}

func (pngObjects) FetchObject(ctx context.Context, bucket, key string) (*s3util.Object, error) {
	if strings.HasPrefix(key, "missing") {
		return nil, s3util.ErrObjectNotFound
	}
	return &s3util.Object{Bucket: bucket, Key: key, ContentType: "image/png", Body: []byte{0x89, 'P', 'N', 'G'}}, nil
}

type countingGenerator struct {
	inFlight, peak atomic.Int32
}

func (g *countingGenerator) Invoke(ctx context.Context, msg bedrock.Message, system string) (string, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return "text", nil
}

func TestProcessKeys(t *testing.T) {
	db := store.NewMemoryStore()
	gen := &countingGenerator{}
	p, err := pipeline.New(pipeline.Deps{Objects: pngObjects{}, Generator: gen, Records: db})
	require.NoError(t, err)

	var out bytes.Buffer
	keys := []string{"a.png", "b.png", "missing.png", "c.png"}
	failed := processKeys(context.Background(), p, "exam-uploads", keys, 2, false, &out)

	assert.Equal(t, 1, failed)
	assert.Equal(t, 3, db.Len())
	assert.LessOrEqual(t, gen.peak.Load(), int32(2))
	assert.Contains(t, out.String(), "FAIL missing.png [fetch]")
	assert.Contains(t, out.String(), "ok   a.png -> a")
}

func TestProcessKeys_FailFast(t *testing.T) {
	db := store.NewMemoryStore()
	p, err := pipeline.New(pipeline.Deps{Objects: pngObjects{}, Generator: &countingGenerator{}, Records: db})
	require.NoError(t, err)

	var out bytes.Buffer
	keys := []string{"missing.png", "a.png", "b.png"}
	failed := processKeys(context.Background(), p, "exam-uploads", keys, 1, true, &out)

	assert.Equal(t, len(keys), failed, "keys after the first failure run against a canceled context")
	assert.Zero(t, db.Len())
}
