package lambdaboot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fpang/cert-teacher/internal/bedrock"
)

// Environment variables read at startup.
const (
	EnvTableName           = "QUESTION_TABLE_NAME"
	EnvBucketName          = "BUCKET_NAME"
	EnvSessionTableName    = "SESSION_TABLE_NAME"
	EnvModelID             = "BEDROCK_MODEL_ID"
	EnvMaxTokens           = "BEDROCK_MAX_TOKENS"
	EnvRetryAttempts       = "BEDROCK_RETRY_ATTEMPTS"
	EnvModelIDParam        = "SSM_MODEL_ID_PARAM"
	EnvPipelineTimeout     = "PIPELINE_TIMEOUT"
	EnvExplanationTemplate = "EXPLANATION_TEMPLATE"
)

// Config is the runtime configuration shared by every binary.
type Config struct {
	TableName  string
	BucketName string

	// SessionTableName holds the web front end's session flows.
	SessionTableName string

	// ModelID wins over ModelIDParam when both are set. When neither is,
	// bedrock.DefaultModelID is used.
	ModelID      string
	ModelIDParam string

	MaxTokens     int
	RetryAttempts int

	// PipelineTimeout bounds one pipeline run. Zero means only the Lambda
	// deadline applies.
	PipelineTimeout time.Duration

	// ExplanationFormat inserts the fixed layout into the explanation
	// prompt. On unless EXPLANATION_TEMPLATE is "off".
	ExplanationFormat bool
}

// ConfigError reports a missing or malformed environment variable.
type ConfigError struct {
	Var    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Var, e.Reason)
}

// LoadConfig reads Config through getenv (os.Getenv outside tests). Only
// malformed values are errors; use Require for mandatory ones.
func LoadConfig(getenv func(string) string) (Config, error) {
	c := Config{
		TableName:         strings.TrimSpace(getenv(EnvTableName)),
		BucketName:        strings.TrimSpace(getenv(EnvBucketName)),
		SessionTableName:  strings.TrimSpace(getenv(EnvSessionTableName)),
		ModelID:           strings.TrimSpace(getenv(EnvModelID)),
		ModelIDParam:      strings.TrimSpace(getenv(EnvModelIDParam)),
		MaxTokens:         bedrock.DefaultMaxTokens,
		RetryAttempts:     1,
		ExplanationFormat: true,
	}

	if v := getenv(EnvMaxTokens); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, &ConfigError{Var: EnvMaxTokens, Reason: fmt.Sprintf("must be a positive integer, got %q", v)}
		}
		c.MaxTokens = n
	}
	if v := getenv(EnvRetryAttempts); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, &ConfigError{Var: EnvRetryAttempts, Reason: fmt.Sprintf("must be at least 1, got %q", v)}
		}
		c.RetryAttempts = n
	}
	if v := getenv(EnvPipelineTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, &ConfigError{Var: EnvPipelineTimeout, Reason: fmt.Sprintf("must be a duration like 90s, got %q", v)}
		}
		c.PipelineTimeout = d
	}
	switch strings.ToLower(strings.TrimSpace(getenv(EnvExplanationTemplate))) {
	case "", "on", "true", "1":
	case "off", "false", "0":
		c.ExplanationFormat = false
	default:
		return Config{}, &ConfigError{Var: EnvExplanationTemplate, Reason: "must be on or off"}
	}
	return c, nil
}

// Require checks that the named variables were set.
func (c Config) Require(vars ...string) error {
	for _, name := range vars {
		var v string
		switch name {
		case EnvTableName:
			v = c.TableName
		case EnvBucketName:
			v = c.BucketName
		case EnvSessionTableName:
			v = c.SessionTableName
		case EnvModelID:
			v = c.ModelID
		case EnvModelIDParam:
			v = c.ModelIDParam
		default:
			return &ConfigError{Var: name, Reason: "is not a known setting"}
		}
		if v == "" {
			return &ConfigError{Var: name, Reason: "is required"}
		}
	}
	return nil
}
