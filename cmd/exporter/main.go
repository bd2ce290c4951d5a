// Command exporter runs the report export worker: it consumes export jobs
// from SQS, assembles XLSX workbooks from the analytics services, stores them
// in S3 and notifies the requesting user through Firestore.
//
// A small HTTP listener serves health probes and clue debug endpoints.
//
// # Configuration
//
// Environment variables:
//
//	APP_HOST                           - health/debug listen host (default: "0.0.0.0")
//	APP_PORT                           - health/debug listen port (default: 8087)
//	SQS_QUEUE_URL                      - export job queue URL (required)
//	AWS_REGION                         - AWS region (default: "us-east-2")
//	AWS_S3_BUCKET                      - artifact bucket (default: "sifthub-exports")
//	AWS_ACCESS_KEY_ID                  - static AWS credentials (optional; default chain otherwise)
//	AWS_SECRET_ACCESS_KEY              - static AWS credentials (optional)
//	MONGO_DATASOURCE_URL               - audit store connection (default: "mongodb://localhost:27017")
//	AUDIT_LOG_MONGO_DATABASE           - audit database name (default: "auditlogs")
//	PRIMARY_REDIS_DATASOURCE_URL       - user-access cache host (default: "localhost")
//	PRIMARY_REDIS_DATASOURCE_PORT      - user-access cache port (default: 6379)
//	PRIMARY_REDIS_DATASOURCE_PASSWORD  - cache password; non-empty enables TLS (optional)
//	ANALYTICS_SERVICE_HOST             - analytics service host (required)
//	CLIENT_SERVICE_HOST                - client service host (required)
//	HTTP_PROTOCOL                      - scheme prefix for service URLs (default: "http://")
//	HTTP_INSECURE_SKIP_VERIFY          - disable outbound TLS verification (default: false)
//	FIREBASE_SECRETS_PATH              - Firestore service account secret (default: "notifications/internal/FIREBASE")
//	EXPORT_FILE_EXPIRY_HOURS           - presigned URL expiry (default: 24)
//	MAX_EXPORT_SIZE_MB                 - workbook size cap (default: 100)
//	LOG_LEVEL                          - "DEBUG" enables debug logs (default: "INFO")
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	gfirestore "cloud.google.com/go/firestore"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	goredis "github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"goa.design/clue/debug"
	"goa.design/clue/health"
	"goa.design/clue/log"
	"google.golang.org/api/option"

	"github.com/sifthub/exporter/export"
	"github.com/sifthub/exporter/export/delivery"
	"github.com/sifthub/exporter/export/reports"
	"github.com/sifthub/exporter/features/analytics/insights"
	"github.com/sifthub/exporter/features/analytics/usage"
	auditmongo "github.com/sifthub/exporter/features/audit/mongo"
	auditmongoclient "github.com/sifthub/exporter/features/audit/mongo/clients/mongo"
	notifyfirestore "github.com/sifthub/exporter/features/notify/firestore"
	notifyfirestoreclient "github.com/sifthub/exporter/features/notify/firestore/clients/firestore"
	queuesqs "github.com/sifthub/exporter/features/queue/sqs"
	queuesqsclient "github.com/sifthub/exporter/features/queue/sqs/clients/sqs"
	"github.com/sifthub/exporter/features/secrets/awssm"
	"github.com/sifthub/exporter/features/useraccess"
	useraccessredis "github.com/sifthub/exporter/features/useraccess/clients/redis"
	workbooks3 "github.com/sifthub/exporter/features/workbook/s3"
	workbooks3client "github.com/sifthub/exporter/features/workbook/s3/clients/s3"
	"github.com/sifthub/exporter/httpclient"
	"github.com/sifthub/exporter/telemetry"
)

func main() {
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if strings.EqualFold(envOr("LOG_LEVEL", "INFO"), "DEBUG") {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(ctx, err)
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration from environment.
	appHost := envOr("APP_HOST", "0.0.0.0")
	appPort := envIntOr("APP_PORT", 8087)
	queueURL := os.Getenv("SQS_QUEUE_URL")
	region := envOr("AWS_REGION", "us-east-2")
	bucket := envOr("AWS_S3_BUCKET", "sifthub-exports")
	mongoURL := envOr("MONGO_DATASOURCE_URL", "mongodb://localhost:27017")
	mongoDB := envOr("AUDIT_LOG_MONGO_DATABASE", "auditlogs")
	redisHost := envOr("PRIMARY_REDIS_DATASOURCE_URL", "localhost")
	redisPort := envIntOr("PRIMARY_REDIS_DATASOURCE_PORT", 6379)
	redisPassword := os.Getenv("PRIMARY_REDIS_DATASOURCE_PASSWORD")
	analyticsHost := os.Getenv("ANALYTICS_SERVICE_HOST")
	clientHost := os.Getenv("CLIENT_SERVICE_HOST")
	protocol := envOr("HTTP_PROTOCOL", "http://")
	insecureSkipVerify := envBoolOr("HTTP_INSECURE_SKIP_VERIFY", false)
	firebaseSecretPath := envOr("FIREBASE_SECRETS_PATH", awssm.DefaultFirebaseSecretPath)
	presignTTL := time.Duration(envIntOr("EXPORT_FILE_EXPIRY_HOURS", 24)) * time.Hour
	maxExportMB := envIntOr("MAX_EXPORT_SIZE_MB", workbooks3.DefaultMaxExportMB)

	if queueURL == "" {
		return errors.New("SQS_QUEUE_URL is required")
	}
	if analyticsHost == "" {
		return errors.New("ANALYTICS_SERVICE_HOST is required")
	}
	if clientHost == "" {
		return errors.New("CLIENT_SERVICE_HOST is required")
	}

	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewClueMetrics()
	tracer := telemetry.NewClueTracer()

	// AWS clients share one config; static credentials only when provided.
	awsOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey, secretKey := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"); accessKey != "" && secretKey != "" {
		awsOpts = append(awsOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	// Mongo.
	mongoClient, err := mongodriver.Connect(mongooptions.Client().ApplyURI(mongoURL))
	if err != nil {
		return fmt.Errorf("connect to mongo: %w", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Errorf(ctx, err, "disconnect mongo")
		}
	}()
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = mongoClient.Ping(pingCtx, readpref.Primary())
	cancel()
	if err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}

	auditClient, err := auditmongoclient.New(auditmongoclient.Options{
		Client:   mongoClient,
		Database: mongoDB,
	})
	if err != nil {
		return fmt.Errorf("create audit client: %w", err)
	}
	auditStore, err := auditmongo.NewStore(auditClient)
	if err != nil {
		return fmt.Errorf("create audit store: %w", err)
	}

	// Redis. A configured password implies TLS on the managed endpoint.
	redisOpts := &goredis.Options{
		Addr:     fmt.Sprintf("%s:%d", redisHost, redisPort),
		Password: redisPassword,
	}
	if redisPassword != "" {
		redisOpts.TLSConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- managed endpoint, name not in cert
	}
	redisClient := goredis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Errorf(ctx, err, "close redis")
		}
	}()
	accessCache, err := useraccessredis.New(redisClient)
	if err != nil {
		return fmt.Errorf("create access cache: %w", err)
	}
	if err := accessCache.Ping(ctx); err != nil {
		// The resolver falls back to the client service, so start anyway.
		log.Warnf(ctx, "redis unreachable at startup: %v", err)
	}

	// Firestore, authenticated through the Secrets Manager service account.
	secretsLoader, err := awssm.NewLoader(secretsmanager.NewFromConfig(awsCfg))
	if err != nil {
		return fmt.Errorf("create secrets loader: %w", err)
	}
	firebaseCreds, err := secretsLoader.FirebaseCredentials(ctx, firebaseSecretPath)
	if err != nil {
		return fmt.Errorf("load firebase credentials: %w", err)
	}
	firestoreClient, err := gfirestore.NewClient(ctx, firebaseCreds.ProjectID,
		option.WithCredentialsJSON(firebaseCreds.Raw))
	if err != nil {
		return fmt.Errorf("create firestore client: %w", err)
	}
	defer func() {
		if err := firestoreClient.Close(); err != nil {
			log.Errorf(ctx, err, "close firestore")
		}
	}()

	// Shared HTTP client and service clients.
	httpClient := httpclient.New(httpclient.Options{InsecureSkipVerify: insecureSkipVerify})
	insightsClient, err := insights.New(insights.Options{
		HTTP:    httpClient,
		BaseURL: protocol + analyticsHost,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("create insights client: %w", err)
	}
	usageClient, err := usage.New(usage.Options{
		HTTP:    httpClient,
		BaseURL: protocol + analyticsHost,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("create usage client: %w", err)
	}
	accessResolver, err := useraccess.NewResolver(useraccess.Options{
		Cache:   accessCache,
		HTTP:    httpClient,
		BaseURL: protocol + clientHost,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("create access resolver: %w", err)
	}

	// Workbook storage.
	s3api := awss3.NewFromConfig(awsCfg)
	s3Client, err := workbooks3client.New(workbooks3client.Options{
		API:        s3api,
		Presigner:  awss3.NewPresignClient(s3api),
		Bucket:     bucket,
		PresignTTL: presignTTL,
	})
	if err != nil {
		return fmt.Errorf("create s3 client: %w", err)
	}
	workbookStore, err := workbooks3.NewStorage(workbooks3.Options{
		Client:      s3Client,
		MaxExportMB: maxExportMB,
		Metrics:     metrics,
	})
	if err != nil {
		return fmt.Errorf("create workbook store: %w", err)
	}

	// Notifier.
	notifyClient, err := notifyfirestoreclient.New(firestoreClient)
	if err != nil {
		return fmt.Errorf("create firestore wrapper: %w", err)
	}
	notifier, err := notifyfirestore.NewNotifier(notifyfirestore.Options{
		Client: notifyClient,
		Access: accessResolver,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("create notifier: %w", err)
	}

	// Builders and sinks.
	builders := export.NewBuilderRegistry()
	faqBuilder, err := reports.NewFAQBuilder(reports.FAQOptions{
		Insights: insightsClient,
		Store:    workbookStore,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("create faq builder: %w", err)
	}
	builders.Register(export.ModuleInsights, export.TypeResponseGeneration,
		export.SubTypeFrequentAskedQuestions, faqBuilder)
	for _, typ := range []string{export.TypeAnswer, export.TypeAutofill, export.TypeAITeammate} {
		usageBuilder, err := reports.NewUsageBuilder(reports.UsageOptions{
			Usage:  usageClient,
			Store:  workbookStore,
			Type:   typ,
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("create %s usage builder: %w", typ, err)
		}
		builders.Register(export.ModuleUsageLogs, typ, export.WildcardSubType, usageBuilder)
	}

	sinks := export.NewSinkRegistry()
	downloadSink, err := delivery.NewDownloadSink(workbookStore, logger)
	if err != nil {
		return fmt.Errorf("create download sink: %w", err)
	}
	sinks.Register(export.ModeDownload, downloadSink)
	sinks.Register(export.ModeEmail, delivery.NewEmailSink(logger))

	// Router and consumer.
	router, err := export.NewRouter(export.RouterOptions{
		Builders: builders,
		Sinks:    sinks,
		Audit:    auditStore,
		Notifier: notifier,
		Logger:   logger,
		Metrics:  metrics,
		Tracer:   tracer,
	})
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}
	queueClient, err := queuesqsclient.New(awssqs.NewFromConfig(awsCfg), queuesqsclient.Options{
		QueueURL: queueURL,
	})
	if err != nil {
		return fmt.Errorf("create queue client: %w", err)
	}
	consumer, err := queuesqs.NewConsumer(queuesqs.Options{
		Client:  queueClient,
		Handler: router,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	// Health and debug listener.
	mux := http.NewServeMux()
	debug.MountDebugLogEnabler(mux)
	debug.MountPprofHandlers(mux)
	check := health.Handler(health.NewChecker(auditClient, accessCache))
	mux.Handle("/healthz", check)
	mux.Handle("/livez", check)
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", appHost, appPort),
		Handler:           log.HTTP(ctx)(mux),
		ReadHeaderTimeout: 60 * time.Second,
	}

	var wg sync.WaitGroup
	errc := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf(ctx, "health listener on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("health listener: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf(ctx, "consuming queue %s", queueURL)
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errc <- fmt.Errorf("consumer: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf(ctx, err, "shutdown health listener")
	}
	wg.Wait()
	log.Printf(ctx, "exporter stopped")
	return runErr
}

// envOr returns the environment variable value or a default.
func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// envIntOr returns the environment variable as int or a default.
func envIntOr(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

// envBoolOr returns the environment variable as bool or a default.
func envBoolOr(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
