// Command gasmon runs the bounded sensor-aggregation pipeline: it builds
// the valid-location set from S3, streams events from the configured
// source through the filtering chain, fans the survivors out to the
// windowed and spatial averaging sinks, and reports the run summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/gasmon/pkg/gasmon/config"
	"github.com/randalmurphal/gasmon/pkg/gasmon/locations"
	"github.com/randalmurphal/gasmon/pkg/gasmon/observability"
	"github.com/randalmurphal/gasmon/pkg/gasmon/pipeline"
	"github.com/randalmurphal/gasmon/pkg/gasmon/receiver"
	"github.com/randalmurphal/gasmon/pkg/gasmon/sink"
	"github.com/randalmurphal/gasmon/pkg/gasmon/store"
)

func main() {
	configPath := flag.String("config", "gasmon.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.FromFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gasmon: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		os.Exit(1)
	}
}

// run executes one bounded pipeline run under a fresh run ID and logs any
// failure against it.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	runID := uuid.NewString()
	if err := runPipeline(ctx, cfg, logger, runID); err != nil {
		observability.LogRunError(logger, runID, err)
		return err
	}
	return nil
}

func runPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, runID string) error {
	metrics := observability.NewMetricsRecorder()
	spans := observability.NewSpanManager()

	s3Client, err := locations.NewS3Client(ctx)
	if err != nil {
		return err
	}
	fetchElapsed := observability.TimedOperation()
	locs, err := locations.Fetch(ctx, s3Client, cfg.Locations.S3Bucket, cfg.Locations.S3Key)
	if err != nil {
		return err
	}
	logger.Info("loaded valid locations",
		slog.Int("count", len(locs)),
		slog.Float64("elapsed_ms", fetchElapsed()))

	output, err := buildOutput(ctx, cfg)
	if err != nil {
		return err
	}
	defer output.Close()

	source, cleanup, err := buildSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	stageLog := observability.EnrichLogger(logger, runID, "pipeline")
	durationStage := pipeline.NewFixedDurationStage(cfg.RunTime(),
		pipeline.WithLogger(stageLog), pipeline.WithMetrics(metrics))
	filterStage := pipeline.NewLocationFilterStage(locs,
		pipeline.WithLogger(stageLog), pipeline.WithMetrics(metrics))
	dedupeStage := pipeline.NewDeduplicationStage(cfg.CacheTTL(),
		pipeline.WithLogger(stageLog), pipeline.WithMetrics(metrics))
	chain := pipeline.New(durationStage, filterStage, dedupeStage)

	windowed := sink.NewWindowedAverager(cfg.AveragingPeriod(), cfg.ExpiryTime(), output,
		sink.WithLogger(observability.EnrichLogger(logger, runID, "windowed")),
		sink.WithMetrics(metrics))
	spatial := sink.NewSpatialAverager(locs, output,
		sink.WithLogger(observability.EnrichLogger(logger, runID, "spatial")))

	observability.LogRunStart(logger, runID, cfg.RunTime())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	spanCtx, span := spans.StartRunSpan(runCtx, runID)
	spans.AddSpanEvent(spanCtx, "locations.loaded", attribute.Int("count", len(locs)))

	fanout := sink.Parallel(
		sink.Traced("windowed", spans, windowed),
		sink.Traced("spatial", spans, spatial),
	)
	runErr := chain.Sink(fanout).Handle(spanCtx, source.Events(spanCtx))
	spans.EndSpanWithError(span, runErr)
	cancel()

	stats := pipeline.CollectStats(durationStage, filterStage, dedupeStage)
	eventsPerSec := float64(stats.EventsProcessed) / cfg.RunTime().Seconds()
	observability.LogRunSummary(logger, runID, stats.EventsProcessed,
		stats.InvalidEventsFiltered, stats.DuplicateEventsIgnored, eventsPerSec)

	fmt.Printf("\nProcessed %d events in %d seconds\n", stats.EventsProcessed, cfg.RunTimeSeconds)
	fmt.Printf("Events/s: %.2f\n\n", eventsPerSec)
	fmt.Printf("Invalid locations skipped: %d\n", stats.InvalidEventsFiltered)
	fmt.Printf("Duplicated events skipped: %d\n", stats.DuplicateEventsIgnored)

	return runErr
}

// buildOutput assembles the configured aggregate writers. The CSV output
// is always on; SQLite and InfluxDB join when configured.
func buildOutput(ctx context.Context, cfg *config.Config) (*store.Multi, error) {
	csvWriter, err := store.NewCSVWriter(cfg.Output.AveragesCSV, cfg.Output.SpatialCSV)
	if err != nil {
		return nil, err
	}
	writers := []store.Writer{csvWriter}

	if cfg.Output.SQLitePath != "" {
		sqliteStore, err := store.NewSQLiteStore(cfg.Output.SQLitePath)
		if err != nil {
			return nil, err
		}
		writers = append(writers, sqliteStore)
	}

	if cfg.Output.Influx.Enabled() {
		influx := cfg.Output.Influx
		influxWriter, err := store.NewInfluxWriter(ctx, influx.URL, influx.Token, influx.Org, influx.Bucket)
		if err != nil {
			return nil, err
		}
		writers = append(writers, influxWriter)
	}

	return store.NewMulti(writers...), nil
}

// buildSource creates the configured event source and its teardown.
func buildSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (receiver.Source, func(), error) {
	switch cfg.Receiver.Source {
	case config.SourceKafka:
		kafka := cfg.Receiver.Kafka
		src, err := receiver.NewKafkaReceiver(kafka.Brokers, kafka.Topic, kafka.GroupID, logger)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := src.Close(); err != nil {
				logger.Warn("close consumer group failed", slog.String("error", err.Error()))
			}
		}
		return src, cleanup, nil

	default:
		awsClients, err := receiver.NewAWSClients(ctx)
		if err != nil {
			return nil, nil, err
		}
		sub, err := receiver.NewQueueSubscription(ctx, awsClients.SQS, awsClients.SNS, cfg.Receiver.SNSTopicARN)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer closeCancel()
			if err := sub.Close(closeCtx); err != nil {
				logger.Warn("queue subscription teardown failed", slog.String("error", err.Error()))
			}
		}
		return receiver.NewSQSReceiver(awsClients.SQS, sub, logger), cleanup, nil
	}
}

// newLogger builds the application logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
