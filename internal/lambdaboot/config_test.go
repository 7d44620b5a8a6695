package lambdaboot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpang/cert-teacher/internal/bedrock"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfig_Defaults(t *testing.T) {
	c, err := LoadConfig(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, bedrock.DefaultMaxTokens, c.MaxTokens)
	assert.Equal(t, 1, c.RetryAttempts)
	assert.Zero(t, c.PipelineTimeout)
	assert.True(t, c.ExplanationFormat)
	assert.Empty(t, c.TableName)
}

func TestLoadConfig_Values(t *testing.T) {
	c, err := LoadConfig(envMap(map[string]string{
		EnvTableName:           " questions ",
		EnvBucketName:          "exam-uploads",
		EnvSessionTableName:    "sessions",
		EnvModelID:             "anthropic.claude-3-haiku-20240307-v1:0",
		EnvMaxTokens:           "1000",
		EnvRetryAttempts:       "3",
		EnvPipelineTimeout:     "90s",
		EnvExplanationTemplate: "OFF",
	}))
	require.NoError(t, err)

	assert.Equal(t, "questions", c.TableName)
	assert.Equal(t, "exam-uploads", c.BucketName)
	assert.Equal(t, "sessions", c.SessionTableName)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", c.ModelID)
	assert.Equal(t, 1000, c.MaxTokens)
	assert.Equal(t, 3, c.RetryAttempts)
	assert.Equal(t, 90*time.Second, c.PipelineTimeout)
	assert.False(t, c.ExplanationFormat)
}

func TestLoadConfig_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantVar string
	}{
		{"max tokens not a number", map[string]string{EnvMaxTokens: "lots"}, EnvMaxTokens},
		{"max tokens zero", map[string]string{EnvMaxTokens: "0"}, EnvMaxTokens},
		{"retry zero", map[string]string{EnvRetryAttempts: "0"}, EnvRetryAttempts},
		{"timeout unitless", map[string]string{EnvPipelineTimeout: "90"}, EnvPipelineTimeout},
		{"template unknown", map[string]string{EnvExplanationTemplate: "maybe"}, EnvExplanationTemplate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(envMap(tt.env))
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.wantVar, ce.Var)
		})
	}
}

func TestRequire(t *testing.T) {
	c := Config{BucketName: "exam-uploads"}
	assert.NoError(t, c.Require(EnvBucketName))

	err := c.Require(EnvBucketName, EnvTableName)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, EnvTableName, ce.Var)
	assert.Contains(t, err.Error(), "QUESTION_TABLE_NAME is required")

	err = c.Require(EnvSessionTableName)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, EnvSessionTableName, ce.Var)
}

func TestBedrockRuntimeOptions(t *testing.T) {
	assert.Empty(t, bedrockRuntimeOptions(Config{RetryAttempts: 1}))

	opts := bedrockRuntimeOptions(Config{RetryAttempts: 3})
	require.Len(t, opts, 1)
	o := bedrockruntime.Options{RetryMaxAttempts: 5}
	opts[0](&o)
	assert.Equal(t, 1, o.RetryMaxAttempts, "the SDK retryer must not multiply client retries")
}

type fakeSSM struct {
	values map[string]string
	calls  int
}

func (f *fakeSSM) GetParameter(ctx context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.calls++
	v, ok := f.values[*in.Name]
	if !ok {
		return nil, errors.New("ParameterNotFound")
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Name: in.Name, Value: &v}}, nil
}

func TestResolveModelID(t *testing.T) {
	ctx := context.Background()
	params := &fakeSSM{values: map[string]string{"/cert-teacher/model-id": "anthropic.claude-3-haiku-20240307-v1:0"}}

	id, err := ResolveModelID(ctx, params, Config{})
	require.NoError(t, err)
	assert.Equal(t, bedrock.DefaultModelID, id)
	assert.Zero(t, params.calls)

	id, err = ResolveModelID(ctx, params, Config{ModelID: "explicit", ModelIDParam: "/cert-teacher/model-id"})
	require.NoError(t, err)
	assert.Equal(t, "explicit", id)
	assert.Zero(t, params.calls)

	id, err = ResolveModelID(ctx, params, Config{ModelIDParam: "/cert-teacher/model-id"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", id)
	assert.Equal(t, 1, params.calls)

	_, err = ResolveModelID(ctx, params, Config{ModelIDParam: "/missing"})
	assert.ErrorContains(t, err, "/missing")
}

func TestResolveModelID_EmptyParameter(t *testing.T) {
	params := &fakeSSM{values: map[string]string{"/empty": ""}}
	_, err := ResolveModelID(context.Background(), params, Config{ModelIDParam: "/empty"})
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
}
