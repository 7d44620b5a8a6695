// Package bedrock wraps the Amazon Bedrock runtime for Anthropic models.
//
// The client hides the Messages envelope: callers pass a Message and an
// optional system instruction and get back the first text block of the
// response. It is stateless and safe for concurrent use.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/rs/zerolog/log"
)

const (
	// AnthropicVersion is the protocol version tag Bedrock expects.
	AnthropicVersion = "bedrock-2023-05-31"

	// DefaultModelID is Claude 3 Sonnet, the model the pipeline was tuned on.
	DefaultModelID = "anthropic.claude-3-sonnet-20240229-v1:0"

	// DefaultMaxTokens is the output ceiling per call. It was 1000 until
	// explanations started being cut off mid-choice.
	DefaultMaxTokens = 5000

	contentTypeJSON = "application/json"
)

// InvokeModelAPI is the subset of *bedrockruntime.Client used here.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client invokes one Bedrock model.
type Client struct {
	api       InvokeModelAPI
	modelID   string
	maxTokens int

	// attempts is the total number of tries; 1 disables retry.
	attempts  int
	baseDelay time.Duration
	sleep     func(context.Context, time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithModelID overrides DefaultModelID.
func WithModelID(id string) Option {
	return func(c *Client) {
		if id != "" {
			c.modelID = id
		}
	}
}

// WithMaxTokens overrides DefaultMaxTokens. Non-positive values are ignored.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithRetry enables bounded exponential backoff on throttling and
// transient service errors. attempts counts the first try.
func WithRetry(attempts int, base time.Duration) Option {
	return func(c *Client) {
		if attempts > 1 {
			c.attempts = attempts
			c.baseDelay = base
		}
	}
}

// NewClient creates a Client over the given runtime API.
func NewClient(api InvokeModelAPI, opts ...Option) *Client {
	c := &Client{
		api:       api,
		modelID:   DefaultModelID,
		maxTokens: DefaultMaxTokens,
		attempts:  1,
		baseDelay: time.Second,
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ModelID returns the model this client invokes.
func (c *Client) ModelID() string { return c.modelID }

// MaxTokens returns the configured output ceiling.
func (c *Client) MaxTokens() int { return c.maxTokens }

// Invoke sends msg with an optional system instruction and returns the
// first text block of the response.
func (c *Client) Invoke(ctx context.Context, msg Message, system string) (string, error) {
	body, err := EncodeRequest(msg, system, c.maxTokens)
	if err != nil {
		return "", &GenerationError{ModelID: c.modelID, Attempts: 1, Err: err}
	}

	var out *bedrockruntime.InvokeModelOutput
	attempt := 0
	for {
		attempt++
		start := time.Now()
		out, err = c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(c.modelID),
			Body:        body,
			ContentType: aws.String(contentTypeJSON),
			Accept:      aws.String(contentTypeJSON),
		})
		if err == nil {
			log.Debug().Str("model", c.modelID).Int("attempt", attempt).Dur("elapsed", time.Since(start)).Msg("Bedrock model invoked")
			break
		}
		if attempt >= c.attempts || !IsRetryable(err) {
			return "", &GenerationError{ModelID: c.modelID, Attempts: attempt, Err: err}
		}
		wait := backoff(c.baseDelay, attempt-1)
		log.Warn().Err(err).Str("model", c.modelID).Int("attempt", attempt).Dur("wait", wait).Msg("Bedrock call throttled, retrying")
		if sleepErr := c.sleep(ctx, wait); sleepErr != nil {
			return "", &GenerationError{ModelID: c.modelID, Attempts: attempt, Err: sleepErr}
		}
	}

	resp, err := DecodeResponse(out.Body)
	if err != nil {
		return "", &GenerationError{ModelID: c.modelID, Attempts: attempt, Err: err}
	}
	text, err := resp.FirstText()
	if err != nil {
		return "", &GenerationError{ModelID: c.modelID, Attempts: attempt, Err: err}
	}

	log.Debug().
		Str("model", c.modelID).
		Str("stopReason", resp.StopReason).
		Int("inputTokens", resp.Usage.InputTokens).
		Int("outputTokens", resp.Usage.OutputTokens).
		Str("text", text).
		Msg("Bedrock response")
	return text, nil
}

// EncodeRequest builds the JSON request envelope for one message.
func EncodeRequest(msg Message, system string, maxTokens int) ([]byte, error) {
	if len(msg.Content) == 0 {
		return nil, ErrEmptyContent
	}
	if msg.Role == "" {
		msg.Role = RoleUser
	}
	body, err := json.Marshal(invokeRequest{
		AnthropicVersion: AnthropicVersion,
		MaxTokens:        maxTokens,
		Messages:         []Message{msg},
		System:           system,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return body, nil
}

// DecodeResponse parses a response body into a typed Response.
func DecodeResponse(body []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &resp, nil
}

// FirstText returns the text of the first content block.
func (r *Response) FirstText() (string, error) {
	if len(r.Content) == 0 {
		return "", ErrEmptyResponse
	}
	if r.Content[0].Text == nil {
		return "", fmt.Errorf("%w (type %q)", ErrMissingText, r.Content[0].Type)
	}
	return *r.Content[0].Text, nil
}
