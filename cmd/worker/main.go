package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"transcription-service/ddd/domain/port"
	"transcription-service/ddd/domain/service"
	"transcription-service/ddd/infrastructure/archive"
	"transcription-service/ddd/infrastructure/chunker"
	"transcription-service/ddd/infrastructure/events"
	"transcription-service/ddd/infrastructure/fleet"
	"transcription-service/ddd/infrastructure/progress"
	"transcription-service/ddd/infrastructure/queue"
	"transcription-service/ddd/infrastructure/storage"
	"transcription-service/ddd/infrastructure/transcriber"
	"transcription-service/internal/resource"
	"transcription-service/pkg/config"
	"transcription-service/pkg/logger"
	"transcription-service/pkg/observability"
	"transcription-service/pkg/registry"
	"transcription-service/pkg/repository"
	"transcription-service/pkg/task"
)

func main() {
	configPath := flag.String("config", "configs/config.dev.yaml", "path to configuration file")
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

	if cfg.Worker.WorkerID == "" {
		cfg.Worker.WorkerID = "worker-" + uuid.NewString()[:8]
	}

	if cfg.Profiling.Enabled {
		observability.StartProfiling("transcription-worker", cfg.Profiling.ServerAddress)
	}

	resource.DefaultMinioResource().MustOpen()
	defer resource.DefaultMinioResource().Close()
	resource.DefaultRedisResource().MustOpen()
	defer resource.DefaultRedisResource().Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := storage.NewMinioStore(
		resource.DefaultMinioResource().GetClient(),
		resource.DefaultMinioResource().GetBucketName(),
	)
	jobQueue := queue.NewRedisQueue(
		resource.DefaultRedisResource().GetClient().Raw(),
		cfg.Queue.Key,
		cfg.Queue.VisibilityTimeout,
	)
	metrics := service.NewMetricsStore(store, cfg.Storage.MetricsKey, "worker:"+cfg.Worker.WorkerID)

	// A worker that cannot reach any inference endpoint must exit before
	// claiming work.
	whisper, err := transcriber.Select(ctx, &cfg.Inference, cfg.Engine.Language)
	if err != nil {
		logger.Fatal(fmt.Sprintf("model load failed: %v", err))
	}

	splitter := chunker.NewFFmpegChunker(
		cfg.Engine.FFmpegBinary,
		cfg.Engine.FFprobeBinary,
		cfg.Engine.ChunkSizeSeconds,
		cfg.Engine.SplitWorkers,
	)
	engine := service.NewEngine(store, splitter, whisper, nil, cfg.Engine.ChunkSizeSeconds, cfg.Engine.Language)

	publisher := buildPublisher(cfg)
	defer publisher.Close()

	worker := service.NewWorker(
		&cfg.Worker,
		&cfg.Queue,
		jobQueue,
		store,
		metrics,
		engine,
		whisper,
		progress.NewObjectSink(store),
		fleet.NewDryRunFleet(),
		publisher,
	)
	engine.SetProgressReporter(worker)

	if cfg.Registry.Enabled {
		reg, rerr := registry.NewWorkerRegistry(registry.RegistryConfig{
			Endpoints:   cfg.Registry.Endpoints,
			DialTimeout: cfg.Registry.DialTimeout,
			Username:    cfg.Registry.Username,
			Password:    cfg.Registry.Password,
			TTL:         cfg.Registry.TTL,
		}, cfg.Autoscaler.FleetTag, cfg.Worker.WorkerID)
		if rerr != nil {
			logger.Fatal(fmt.Sprintf("etcd registry: %v", rerr))
		}
		value, _ := json.Marshal(map[string]string{
			"worker_id":   cfg.Worker.WorkerID,
			"instance_id": cfg.Worker.InstanceID,
		})
		if rerr := reg.Register(string(value)); rerr != nil {
			logger.Fatal(fmt.Sprintf("etcd register: %v", rerr))
		}
		defer func() {
			_ = reg.Deregister()
		}()
	}

	task.Register(newHeartbeatTask(worker))
	if err := task.StartAll(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("start background tasks: %v", err))
	}
	defer task.StopAll()

	if err := worker.Run(ctx); err != nil {
		logger.Error("worker exited with error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

// buildPublisher assembles the event fan-out: kafka stream and/or database
// archive, or a no-op when both are disabled.
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

// heartbeatTask adapts the worker's heartbeat loop to the task manager.
type heartbeatTask struct {
	worker *service.Worker
	done   chan struct{}
}

func newHeartbeatTask(w *service.Worker) *heartbeatTask {
	return &heartbeatTask{worker: w, done: make(chan struct{})}
}

func (t *heartbeatTask) Name() string { return "worker-heartbeat" }

func (t *heartbeatTask) Start(ctx context.Context) error {
	go func() {
		defer close(t.done)
		t.worker.Heartbeat(ctx)
	}()
	return nil
}

func (t *heartbeatTask) Stop() error {
	<-t.done
	return nil
}
