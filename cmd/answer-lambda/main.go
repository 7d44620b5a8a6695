// Package main provides the Lambda entry point for the question pipeline.
//
// The question bucket sends an ObjectCreated notification for every upload.
// This Lambda fetches the image and makes three sequential Bedrock calls:
// extract the question and choices, translate them into Japanese, and
// explain them. It then writes the result to the question table under the
// key minus its extension.
//
// A failed stage fails the invocation, so S3's asynchronous retry applies.
// Reruns for the same key overwrite the record.
//
// Environment: QUESTION_TABLE_NAME (required), BEDROCK_MODEL_ID,
// SSM_MODEL_ID_PARAM, BEDROCK_MAX_TOKENS, BEDROCK_RETRY_ATTEMPTS,
// PIPELINE_TIMEOUT, EXPLANATION_TEMPLATE, CERT_TEACHER_LOG_LEVEL.
package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/cert-teacher/internal/lambdaboot"
	"github.com/fpang/cert-teacher/internal/logging"
	"github.com/fpang/cert-teacher/internal/pipeline"
	"github.com/fpang/cert-teacher/internal/s3util"
)

var questionPipeline *pipeline.Pipeline

var coldStart = true

func init() {
	initStart := time.Now()
	logging.Init()

	cfg := lambdaboot.MustLoadConfig(lambdaboot.EnvTableName)
	clients := lambdaboot.InitAWS()
	questions := lambdaboot.InitQuestionStore(clients.Config, cfg.TableName)
	generator := lambdaboot.InitBedrock(clients, cfg)

	p, err := pipeline.New(pipeline.Deps{
		Objects:           s3util.Fetcher{Client: lambdaboot.InitS3(clients.Config)},
		Generator:         generator,
		Records:           questions,
		ExplanationFormat: cfg.ExplanationFormat,
		Timeout:           cfg.PipelineTimeout,
		Metrics:           os.Stdout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build pipeline")
	}
	questionPipeline = p

	startup := lambdaboot.StartupLog("answer-lambda", initStart).
		DynamoTable("questions", cfg.TableName).
		Model("generation", generator.ModelID()).
		Config("maxTokens", strconv.Itoa(generator.MaxTokens())).
		Config("retryAttempts", strconv.Itoa(cfg.RetryAttempts)).
		Config("pipelineTimeout", cfg.PipelineTimeout.String()).
		Config("explanationFormat", strconv.FormatBool(cfg.ExplanationFormat))
	if cfg.ModelIDParam != "" {
		startup.SSMParam("modelId", cfg.ModelIDParam)
	}
	startup.Log()
}

func handler(ctx context.Context, event events.S3Event) (*pipeline.Outcome, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "answer-lambda").Msg("First invocation after cold start")
	}
	return questionPipeline.HandleS3Event(ctx, event)
}

func main() {
	lambda.Start(handler)
}
