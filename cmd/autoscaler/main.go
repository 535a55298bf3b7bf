package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"transcription-service/ddd/domain/gateway"
	"transcription-service/ddd/domain/port"
	"transcription-service/ddd/domain/service"
	"transcription-service/ddd/infrastructure/archive"
	"transcription-service/ddd/infrastructure/events"
	"transcription-service/ddd/infrastructure/fleet"
	"transcription-service/ddd/infrastructure/queue"
	"transcription-service/ddd/infrastructure/storage"
	"transcription-service/internal/resource"
	"transcription-service/pkg/config"
	"transcription-service/pkg/logger"
	"transcription-service/pkg/repository"
)

// The autoscaler is a one-shot process: an external scheduler (cron, timer)
// invokes it, it makes one sizing decision, prints the result record as JSON
// and exits. All state lives in the object store and the fleet.
func main() {
	configPath := flag.String("config", "configs/config.dev.yaml", "path to configuration file")
	dryRun := flag.Bool("dry-run", false, "compute the decision without mutating the fleet")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *dryRun {
		cfg.Autoscaler.DryRun = true
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

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
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
	metrics := service.NewMetricsStore(store, cfg.Storage.MetricsKey, "autoscaler")

	publisher := buildPublisher(cfg)
	defer publisher.Close()

	spec := gateway.LaunchSpec{
		ImageID:         cfg.Autoscaler.ImageID,
		InstanceType:    cfg.Autoscaler.InstanceType,
		SpotPrice:       cfg.Autoscaler.SpotPrice,
		SecurityGroupID: cfg.Autoscaler.SecurityGroupID,
		KeyName:         cfg.Autoscaler.KeyName,
		FleetTag:        cfg.Autoscaler.FleetTag,
		Bootstrap: gateway.BootstrapPayload{
			QueueKey:  cfg.Queue.Key,
			Bucket:    cfg.Storage.BucketName,
			Region:    cfg.Storage.Region,
			RedisAddr: cfg.Redis.GetRedisAddr(),
		},
	}

	scaler := service.NewAutoscaler(&cfg.Autoscaler, metrics, jobQueue, fleet.NewDryRunFleet(), publisher, spec)
	result, err := scaler.Run(ctx)
	if err != nil {
		logger.Error("autoscaler run failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func buildPublisher(cfg *config.Config) port.EventPublisher {
	var publishers []port.EventPublisher
	if cfg.Kafka.Enabled {
		resource.DefaultKafkaResource().MustOpen()
		publishers = append(publishers, events.NewKafkaPublisher(
			resource.DefaultKafkaResource().GetClient(),
			cfg.Kafka.JobEventsTopic,
			cfg.Kafka.ScaleEventsTopic,
		))
	}
	if cfg.Database.Enabled {
		db, err := repository.NewDatabase(&cfg.Database)
		if err != nil {
			logger.Fatal(fmt.Sprintf("open archive database: %v", err))
		}
		arch, err := archive.NewArchive(db.Self)
		if err != nil {
			logger.Fatal(fmt.Sprintf("init archive: %v", err))
		}
		publishers = append(publishers, arch)
	}
	if len(publishers) == 0 {
		return events.NewNopPublisher()
	}
	return events.NewMultiPublisher(publishers...)
}
