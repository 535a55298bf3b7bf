package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"transcription-service/ddd/domain/entity"
	"transcription-service/ddd/domain/service"
	"transcription-service/ddd/infrastructure/events"
	"transcription-service/ddd/infrastructure/queue"
	"transcription-service/ddd/infrastructure/storage"
	"transcription-service/internal/resource"
	"transcription-service/pkg/config"
	"transcription-service/pkg/logger"
)

// enqueue submits one transcription job from the command line.
func main() {
	configPath := flag.String("config", "configs/config.dev.yaml", "path to configuration file")
	input := flag.String("input", "", "s3://bucket/key of the input audio")
	output := flag.String("output", "", "s3://bucket/key for the transcript")
	duration := flag.Int("duration", 0, "estimated audio duration in seconds")
	priority := flag.Int("priority", 3, "job priority 1-5")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	config.SetGlobalConfig(cfg)

	log := logger.NewLogger(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		File:   cfg.Log.Filename,
	})
	logger.SetGlobalLogger(log)
	defer log.Close()

	resource.DefaultMinioResource().MustOpen()
	defer resource.DefaultMinioResource().Close()
	resource.DefaultRedisResource().MustOpen()
	defer resource.DefaultRedisResource().Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := storage.NewMinioStore(
		resource.DefaultMinioResource().GetClient(),
		resource.DefaultMinioResource().GetBucketName(),
	)
	jobQueue := queue.NewRedisQueue(
		resource.DefaultRedisResource().GetClient().Raw(),
		cfg.Queue.Key,
		cfg.Queue.VisibilityTimeout,
	)
	metrics := service.NewMetricsStore(store, cfg.Storage.MetricsKey, "producer")

	producer := service.NewProducer(jobQueue, metrics, events.NewNopPublisher())
	job := &entity.Job{
		S3InputPath:              *input,
		S3OutputPath:             *output,
		EstimatedDurationSeconds: *duration,
		Priority:                 *priority,
	}
	if err := producer.Submit(ctx, job); err != nil {
		fmt.Fprintf(os.Stderr, "submit: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(job.JobID)
}
