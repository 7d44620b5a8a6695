// Package main serves the upload-and-query front end from Lambda behind
// API Gateway (HTTP API, payload v2) or a function URL.
//
// Session flows are kept in the SESSION_TABLE_NAME table (partition key
// "sessionId", TTL on "expiresAt") so any warm instance can serve any
// request of a session.
//
// Environment: QUESTION_TABLE_NAME, BUCKET_NAME and SESSION_TABLE_NAME
// (required), CERT_TEACHER_LOG_LEVEL.
package main

import (
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/cert-teacher/internal/lambdaboot"
	"github.com/fpang/cert-teacher/internal/logging"
	"github.com/fpang/cert-teacher/internal/viewer"
	"github.com/fpang/cert-teacher/internal/web"
)

var frontEnd *web.Handler

func init() {
	initStart := time.Now()
	logging.Init()

	cfg := lambdaboot.MustLoadConfig(lambdaboot.EnvTableName, lambdaboot.EnvBucketName, lambdaboot.EnvSessionTableName)
	clients := lambdaboot.InitAWS()

	h, err := web.NewHandler(web.Config{
		Bucket:       cfg.BucketName,
		Objects:      lambdaboot.InitS3(clients.Config),
		Records:      lambdaboot.InitQuestionStore(clients.Config, cfg.TableName),
		Sessions:     viewer.NewSessions(lambdaboot.InitFlowStore(clients.Config, cfg.SessionTableName, viewer.DefaultSessionTTL)),
		SecureCookie: true,
		Metrics:      os.Stdout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build web handler")
	}
	frontEnd = h

	lambdaboot.StartupLog("web-lambda", initStart).
		S3Bucket("questions", cfg.BucketName).
		DynamoTable("questions", cfg.TableName).
		DynamoTable("sessions", cfg.SessionTableName).
		Log()
}

func main() {
	adapter := httpadapter.NewV2(frontEnd)
	lambda.Start(adapter.ProxyWithContext)
}
