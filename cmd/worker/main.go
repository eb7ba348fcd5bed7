package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"code-analysis-api/internal/bootstrap"
	"code-analysis-api/internal/queue"
	"code-analysis-api/internal/shared/config"
	"code-analysis-api/internal/shared/metrics"
	"code-analysis-api/internal/shared/telemetry"
	"code-analysis-api/internal/workerproc"
)

const (
	maxMessagesPerPoll = 10
	longPollSeconds    = 20
	receiveBackoff     = time.Second
)

func main() {
	cfg := config.Load()
	if err := telemetry.Init(cfg.LogLevel, cfg.Debug); err != nil {
		log.Printf("telemetry: %v", err)
	}
	defer telemetry.Sync()

	if cfg.SQSQueueURL == "" {
		log.Fatal("SQS_QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(cfg.ServiceName+"-worker", cfg.TracingEnabled)
	if err != nil {
		log.Printf("tracing: %v", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	awsCfg, err := queue.LoadAWSConfig(ctx, cfg.AWSRegion)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app, err := bootstrap.Build(ctx, cfg, bootstrap.RoleWorker)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	w := &worker{
		client:            sqs.NewFromConfig(awsCfg),
		queueURL:          cfg.SQSQueueURL,
		processor:         app.Service,
		visibilitySeconds: cfg.SQSVisibilitySeconds,
		concurrency:       cfg.WorkerConcurrency,
		shutdownTimeout:   time.Duration(cfg.ShutdownTimeoutSeconds) * time.Second,
	}
	w.run(ctx)
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type worker struct {
	client            sqsAPI
	queueURL          string
	processor         workerproc.Processor
	visibilitySeconds int
	concurrency       int
	shutdownTimeout   time.Duration
}

// run long-polls until ctx is done, then waits up to shutdownTimeout for
// in-flight jobs. Jobs get their own context so a shutdown signal does not
// abort a half-finished pipeline.
func (w *worker) run(ctx context.Context) {
	sem := make(chan struct{}, max(1, w.concurrency))
	var wg sync.WaitGroup
	jobCtx := context.WithoutCancel(ctx)

	telemetry.Info("worker.started", map[string]any{
		"queue_url":   w.queueURL,
		"concurrency": cap(sem),
		"visibility":  w.visibilitySeconds,
	})

pollLoop:
	for ctx.Err() == nil {
		resp, err := w.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(w.queueURL),
			MaxNumberOfMessages: maxMessagesPerPoll,
			WaitTimeSeconds:     longPollSeconds,
			VisibilityTimeout:   int32(w.visibilitySeconds),
			MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
				sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
			},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err})
			select {
			case <-ctx.Done():
			case <-time.After(receiveBackoff):
			}
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			metrics.IncAnalysisJobsReceived()
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				handleMessage(jobCtx, w.client, w.queueURL, w.processor, m)
			}(msg)
		}
	}

	telemetry.Info("worker.draining", map[string]any{"timeout": w.shutdownTimeout.String()})
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(w.shutdownTimeout):
		telemetry.Warn("worker.shutdown_timeout", map[string]any{"in_flight": len(sem)})
	}
}

// handleMessage deletes the message on success or when the payload can never
// be processed; any other failure leaves it for redelivery.
func handleMessage(ctx context.Context, client sqsAPI, queueURL string, processor workerproc.Processor, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)
	fields := baseFields(msg)

	err := workerproc.HandleMessage(ctx, processor, body)
	switch {
	case err == nil:
		if deleteMessage(ctx, client, queueURL, msg) {
			telemetry.Info("worker.analysis.completed", fields)
			metrics.IncAnalysisJobsCompleted()
		}
	case workerproc.Unrecoverable(err):
		fields["error"] = err.Error()
		telemetry.Error("worker.analysis.unrecoverable", fields)
		if deleteMessage(ctx, client, queueURL, msg) {
			metrics.IncAnalysisJobsDeletedUnrecoverable()
		}
	default:
		var perr workerproc.ErrProcess
		if errors.As(err, &perr) {
			fields["analysis_id"] = perr.AnalysisID
			fields["request_id"] = perr.RequestID
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.analysis.failed", fields)
		metrics.IncAnalysisJobsFailed()
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.analysis.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg)
		fields["error"] = err.Error()
		telemetry.Error("worker.analysis.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message) map[string]any {
	return map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
}

func receiveCount(msg sqstypes.Message) int {
	raw := strings.TrimSpace(msg.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)])
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
