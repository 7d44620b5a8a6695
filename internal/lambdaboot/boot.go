// Package lambdaboot provides the shared cold-start bootstrap for the
// cert-teacher binaries.
//
// Every binary needs some subset of: AWS config, S3, the question table,
// the Bedrock client, an SSM parameter and startup logging. The Must*
// helpers end the process on failure, the way a Lambda init() should; the
// plain variants return errors for the CLI.
package lambdaboot

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/cert-teacher/internal/bedrock"
	"github.com/fpang/cert-teacher/internal/logging"
	"github.com/fpang/cert-teacher/internal/store"
)

// AWSClients holds the AWS config and the SSM client used at startup.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// ParameterGetter is the subset of *ssm.Client used to read parameters.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadAWS loads the default AWS config chain.
func LoadAWS(ctx context.Context) (AWSClients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return AWSClients{}, fmt.Errorf("load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{Config: cfg, SSM: ssm.NewFromConfig(cfg)}, nil
}

// MustLoadConfig reads Config from the environment and exits when a value
// is malformed or a required variable is missing.
func MustLoadConfig(required ...string) Config {
	c, err := LoadConfig(os.Getenv)
	if err == nil {
		err = c.Require(required...)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	return c
}

// InitAWS is LoadAWS for init(): it exits on failure.
func InitAWS() AWSClients {
	clients, err := LoadAWS(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	return clients
}

// InitS3 creates an S3 client.
func InitS3(cfg aws.Config) *s3.Client {
	return s3.NewFromConfig(cfg)
}

// InitQuestionStore creates the DynamoDB-backed question store.
func InitQuestionStore(cfg aws.Config, tableName string) *store.DynamoStore {
	return store.NewDynamoStore(dynamodb.NewFromConfig(cfg), tableName)
}

// InitFlowStore creates the DynamoDB-backed session flow store. Items
// expire ttl after their last write.
func InitFlowStore(cfg aws.Config, tableName string, ttl time.Duration) *store.DynamoFlowStore {
	return store.NewDynamoFlowStore(dynamodb.NewFromConfig(cfg), tableName, ttl)
}

// ResolveModelID picks the Bedrock model id: the BEDROCK_MODEL_ID value,
// then the SSM parameter named by SSM_MODEL_ID_PARAM, then the default.
func ResolveModelID(ctx context.Context, params ParameterGetter, c Config) (string, error) {
	if c.ModelID != "" {
		return c.ModelID, nil
	}
	if c.ModelIDParam == "" {
		return bedrock.DefaultModelID, nil
	}

	start := time.Now()
	name := c.ModelIDParam
	result, err := params.GetParameter(ctx, &ssm.GetParameterInput{Name: &name})
	if err != nil {
		return "", fmt.Errorf("read model id from SSM %s: %w", name, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil || *result.Parameter.Value == "" {
		return "", &ConfigError{Var: EnvModelIDParam, Reason: fmt.Sprintf("names an empty parameter %s", name)}
	}
	log.Debug().Str("param", name).Dur("elapsed", time.Since(start)).Msg("Model id loaded from SSM")
	return *result.Parameter.Value, nil
}

// NewBedrock creates the generation client for c.
func NewBedrock(ctx context.Context, clients AWSClients, c Config) (*bedrock.Client, error) {
	modelID, err := ResolveModelID(ctx, clients.SSM, c)
	if err != nil {
		return nil, err
	}
	return bedrock.NewClient(
		bedrockruntime.NewFromConfig(clients.Config, bedrockRuntimeOptions(c)...),
		bedrock.WithModelID(modelID),
		bedrock.WithMaxTokens(c.MaxTokens),
		bedrock.WithRetry(c.RetryAttempts, time.Second),
	), nil
}

// bedrockRuntimeOptions turns off the SDK retryer when the client retries
// on its own, so attempts do not multiply.
func bedrockRuntimeOptions(c Config) []func(*bedrockruntime.Options) {
	if c.RetryAttempts <= 1 {
		return nil
	}
	return []func(*bedrockruntime.Options){
		func(o *bedrockruntime.Options) { o.RetryMaxAttempts = 1 },
	}
}

// InitBedrock is NewBedrock for init(): it exits on failure.
func InitBedrock(clients AWSClients, c Config) *bedrock.Client {
	client, err := NewBedrock(context.Background(), clients, c)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise Bedrock client")
	}
	return client
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
