// Package pipeline turns an uploaded exam-question image into a persisted
// question record.
//
// One run is strictly linear:
//
//	start → fetched → extracted → translated → explained → persisted → done
//
// and any stage may end the run in failed(stage, cause). There is no retry,
// no branching and no rollback: a failure after a generation call leaves no
// record behind. Runs for the same key are idempotent because the record is
// written as a whole-item overwrite keyed by store.RecordID(key).
package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fpang/cert-teacher/internal/assets"
	"github.com/fpang/cert-teacher/internal/bedrock"
	"github.com/fpang/cert-teacher/internal/imagetype"
	"github.com/fpang/cert-teacher/internal/metrics"
	"github.com/fpang/cert-teacher/internal/s3util"
	"github.com/fpang/cert-teacher/internal/store"
)

// Stage names one step of a run.
type Stage string

const (
	StageIngress     Stage = "ingress"
	StageFetch       Stage = "fetch"
	StageExtraction  Stage = "extraction"
	StageTranslation Stage = "translation"
	StageExplanation Stage = "explanation"
	StagePersist     Stage = "persist"
)

// State is the position of a run in its linear state machine.
type State string

const (
	StateStart      State = "start"
	StateFetched    State = "fetched"
	StateExtracted  State = "extracted"
	StateTranslated State = "translated"
	StateExplained  State = "explained"
	StatePersisted  State = "persisted"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// reached is the state entered when a stage succeeds.
var reached = map[Stage]State{
	StageFetch:       StateFetched,
	StageExtraction:  StateExtracted,
	StageTranslation: StateTranslated,
	StageExplanation: StateExplained,
	StagePersist:     StatePersisted,
}

// ObjectFetcher reads uploaded objects.
type ObjectFetcher interface {
	FetchObject(ctx context.Context, bucket, key string) (*s3util.Object, error)
}

// Generator sends one message to the generation model and returns the
// first text block of its reply.
type Generator interface {
	Invoke(ctx context.Context, msg bedrock.Message, system string) (string, error)
}

// Deps holds the collaborators of a Pipeline.
type Deps struct {
	Objects   ObjectFetcher
	Generator Generator
	Records   store.RecordWriter

	// ExplanationFormat inserts the fixed output layout into the
	// explanation prompt.
	ExplanationFormat bool

	// Timeout bounds a whole run on top of any caller deadline. Zero
	// leaves only the caller's deadline.
	Timeout time.Duration

	// Metrics receives one EMF document per run. Nil disables metrics.
	Metrics io.Writer
}

// Pipeline runs the extraction → translation → explanation chain.
// It holds no per-run state and is safe for concurrent use.
type Pipeline struct {
	deps Deps
}

// New validates deps and returns a Pipeline.
func New(deps Deps) (*Pipeline, error) {
	var missing []string
	if deps.Objects == nil {
		missing = append(missing, "Objects")
	}
	if deps.Generator == nil {
		missing = append(missing, "Generator")
	}
	if deps.Records == nil {
		missing = append(missing, "Records")
	}
	if len(missing) > 0 {
		return nil, &StageError{Stage: "init", Kind: ErrConfiguration, Err: errors.New("missing " + strings.Join(missing, ", "))}
	}
	return &Pipeline{deps: deps}, nil
}

// StageTiming is the wall time one completed stage took.
type StageTiming struct {
	Stage      Stage `json:"stage"`
	DurationMs int64 `json:"durationMs"`
}

// Outcome summarises a successful run.
type Outcome struct {
	StatusCode int           `json:"statusCode"`
	ID         string        `json:"id"`
	Bucket     string        `json:"bucket"`
	Key        string        `json:"key"`
	MediaType  string        `json:"mediaType"`
	State      State         `json:"state"`
	Stages     []StageTiming `json:"stages"`
	DurationMs int64         `json:"durationMs"`
}

// fetched is the output of the fetch stage.
type fetched struct {
	obj       *s3util.Object
	mediaType string
}

// Process runs the pipeline for one upload. On failure the returned error
// is a *StageError naming the stage and matching one of the Err* kinds.
func (p *Pipeline) Process(ctx context.Context, ev UploadEvent) (*Outcome, error) {
	r := p.newRun(ev)
	defer r.finish()

	if err := ev.Validate(); err != nil {
		return nil, r.fail(ctx, StageIngress, err)
	}
	if p.deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.deps.Timeout)
		defer cancel()
	}

	in, err := step(ctx, r, StageFetch, func(ctx context.Context) (fetched, error) {
		obj, err := p.deps.Objects.FetchObject(ctx, ev.Bucket, ev.Key)
		if err != nil {
			return fetched{}, err
		}
		mt, err := imagetype.Detect(obj.ContentType, obj.Body, ev.Key)
		if err != nil {
			return fetched{}, err
		}
		return fetched{obj: obj, mediaType: mt}, nil
	})
	if err != nil {
		return nil, err
	}
	r.mediaType = in.mediaType
	r.rec.Metric("ImageBytes", float64(len(in.obj.Body)), metrics.UnitBytes)

	extracted, err := step(ctx, r, StageExtraction, func(ctx context.Context) (string, error) {
		msg := bedrock.UserMessage(
			bedrock.ImageBlock(in.mediaType, in.obj.Body),
			bedrock.TextBlock(assets.ExtractionPrompt),
		)
		return p.deps.Generator.Invoke(ctx, msg, "")
	})
	if err != nil {
		return nil, err
	}

	translated, err := step(ctx, r, StageTranslation, func(ctx context.Context) (string, error) {
		msg := bedrock.UserMessage(bedrock.TextBlock(assets.RenderTranslationPrompt(extracted)))
		return p.deps.Generator.Invoke(ctx, msg, assets.JapaneseSystemPrompt)
	})
	if err != nil {
		return nil, err
	}

	explanation, err := step(ctx, r, StageExplanation, func(ctx context.Context) (string, error) {
		msg := bedrock.UserMessage(bedrock.TextBlock(assets.RenderExplanationPrompt(translated, p.deps.ExplanationFormat)))
		return p.deps.Generator.Invoke(ctx, msg, assets.JapaneseSystemPrompt)
	})
	if err != nil {
		return nil, err
	}

	record := &store.QuestionRecord{
		ID:               store.RecordID(ev.Key),
		EnglishQuestion:  extracted,
		JapaneseQuestion: translated,
		Answer:           explanation,
	}
	if _, err := step(ctx, r, StagePersist, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.deps.Records.PutRecord(ctx, record)
	}); err != nil {
		return nil, err
	}

	r.state = StateDone
	return r.outcome(record.ID), nil
}

// run carries the bookkeeping of one Process call.
type run struct {
	ev        UploadEvent
	state     State
	mediaType string
	start     time.Time
	timings   []StageTiming
	logger    zerolog.Logger
	rec       *metrics.Recorder
}

func (p *Pipeline) newRun(ev UploadEvent) *run {
	out := p.deps.Metrics
	if out == nil {
		out = io.Discard
	}
	return &run{
		ev:     ev,
		state:  StateStart,
		start:  time.Now(),
		logger: log.With().Str("bucket", ev.Bucket).Str("key", ev.Key).Logger(),
		rec:    metrics.NewWithWriter(metrics.Namespace, out).Property("bucket", ev.Bucket).Property("key", ev.Key),
	}
}

// step runs one stage, records its timing and advances the state machine.
// A context that is already done aborts the stage before it starts.
func step[T any](ctx context.Context, r *run, stage Stage, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, r.fail(ctx, stage, err)
	}

	start := time.Now()
	v, err := fn(ctx)
	elapsed := time.Since(start)
	if err != nil {
		return zero, r.fail(ctx, stage, err)
	}

	r.timings = append(r.timings, StageTiming{Stage: stage, DurationMs: elapsed.Milliseconds()})
	r.rec.Duration(metricName(stage), elapsed)
	r.state = reached[stage]
	r.logger.Info().Str("stage", string(stage)).Str("state", string(r.state)).Dur("duration", elapsed).Msg("Pipeline stage complete")
	return v, nil
}

// fail moves the run to StateFailed and builds the tagged error.
func (r *run) fail(ctx context.Context, stage Stage, err error) error {
	kind := stageKind(stage)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = ErrTimeout
	}
	prev := r.state
	r.state = StateFailed

	r.rec.Count("PipelineFailure").
		Dimension("Stage", string(stage)).
		Property("failedStage", string(stage)).
		Property("errorKind", kind.Error())
	r.logger.Error().
		Err(err).
		Str("stage", string(stage)).
		Str("lastState", string(prev)).
		Str("kind", kind.Error()).
		Msg("Pipeline stage failed")
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

func (r *run) outcome(id string) *Outcome {
	return &Outcome{
		StatusCode: 200,
		ID:         id,
		Bucket:     r.ev.Bucket,
		Key:        r.ev.Key,
		MediaType:  r.mediaType,
		State:      r.state,
		Stages:     r.timings,
		DurationMs: time.Since(r.start).Milliseconds(),
	}
}

// finish flushes metrics and logs the terminal state.
func (r *run) finish() {
	total := time.Since(r.start)
	if r.state == StateDone {
		r.rec.Count("PipelineSuccess")
		r.logger.Info().Str("id", store.RecordID(r.ev.Key)).Dur("duration", total).Msg("Pipeline complete")
	}
	r.rec.Duration("PipelineLatency", total).Flush()
}

// metricName turns a stage into an EMF metric name, e.g. "ExtractionLatency".
func metricName(s Stage) string {
	name := string(s)
	if name == "" {
		return "Latency"
	}
	return strings.ToUpper(name[:1]) + name[1:] + "Latency"
}
