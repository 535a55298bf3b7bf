package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config is the root service configuration shared by all binaries.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Profiling  ProfilingConfig  `mapstructure:"profiling"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Registry   RegistryConfig   `mapstructure:"registry"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Inference  InferenceConfig  `mapstructure:"inference"`
	Autoscaler AutoscalerConfig `mapstructure:"autoscaler"`
}

// LogConfig controls the logrus backend.
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// ProfilingConfig enables continuous profiling via pyroscope.
type ProfilingConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServerAddress string `mapstructure:"server_address"`
}

// StorageConfig describes the object store holding transcripts, checkpoints,
// progress documents and the queue metrics document.
type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	Region          string `mapstructure:"region"`
	MetricsKey      string `mapstructure:"metrics_key"`
}

// RedisConfig configures the redis connection backing the job queue.
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	EnableTLS    bool          `mapstructure:"enable_tls"`
}

// QueueConfig describes the job queue semantics. The visibility timeout is the
// lease during which a claimed message is hidden from other workers; it must
// exceed the worst-case job duration or redelivery will duplicate work.
type QueueConfig struct {
	Key               string        `mapstructure:"key"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
	PollWait          time.Duration `mapstructure:"poll_wait"`
}

// KafkaConfig configures the optional lifecycle event stream.
type KafkaConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	BootstrapServers []string `mapstructure:"bootstrap_servers"`
	ClientID         string   `mapstructure:"client_id"`
	JobEventsTopic   string   `mapstructure:"job_events_topic"`
	ScaleEventsTopic string   `mapstructure:"scale_events_topic"`
}

// RegistryConfig configures optional etcd worker registration.
type RegistryConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Endpoints       []string      `mapstructure:"endpoints"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	TTL             time.Duration `mapstructure:"ttl"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// DatabaseConfig configures the optional MySQL job archive.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	Charset         string        `mapstructure:"charset"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// WorkerConfig controls the worker lifecycle loop.
type WorkerConfig struct {
	WorkerID          string        `mapstructure:"worker_id"`
	InstanceID        string        `mapstructure:"instance_id"`
	Preemptible       bool          `mapstructure:"preemptible"`
	ScratchDir        string        `mapstructure:"scratch_dir"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	IdleThreshold     time.Duration `mapstructure:"idle_threshold"`
	ErrorBackoff      time.Duration `mapstructure:"error_backoff"`
}

// EngineConfig controls audio chunking and merging.
type EngineConfig struct {
	ChunkSizeSeconds int    `mapstructure:"chunk_size_seconds"`
	Language         string `mapstructure:"language"`
	FFmpegBinary     string `mapstructure:"ffmpeg_binary"`
	FFprobeBinary    string `mapstructure:"ffprobe_binary"`
	SplitWorkers     int    `mapstructure:"split_workers"`
}

// InferenceConfig points at the external speech-to-text servers. The GPU
// endpoint is preferred when its capability probe succeeds at startup.
type InferenceConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	GPUEndpoint    string        `mapstructure:"gpu_endpoint"`
	Model          string        `mapstructure:"model"`
	BatchSize      int           `mapstructure:"batch_size"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AutoscalerConfig holds the scaling bounds and fleet launch parameters.
type AutoscalerConfig struct {
	MinInstances           int     `mapstructure:"min_instances"`
	MaxInstances           int     `mapstructure:"max_instances"`
	MinutesPerInstanceHour float64 `mapstructure:"minutes_per_instance_hour"`
	ScaleUpThreshold       float64 `mapstructure:"scale_up_threshold"`
	ScaleDownThreshold     float64 `mapstructure:"scale_down_threshold"`
	FallbackMinutesPerJob  float64 `mapstructure:"fallback_minutes_per_job"`
	FleetTag               string  `mapstructure:"fleet_tag"`
	InstanceType           string  `mapstructure:"instance_type"`
	ImageID                string  `mapstructure:"image_id"`
	SpotPrice              string  `mapstructure:"spot_price"`
	SecurityGroupID        string  `mapstructure:"security_group_id"`
	KeyName                string  `mapstructure:"key_name"`
	DryRun                 bool    `mapstructure:"dry_run"`
}

var (
	globalMu sync.RWMutex
	global   *Config
)

// SetGlobalConfig stores the loaded configuration for singleton resources.
func SetGlobalConfig(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = cfg
}

// GetGlobalConfig returns the configuration set by SetGlobalConfig.
func GetGlobalConfig() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// Load reads a yaml configuration file with environment overrides.
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("queue.key", "transcription:jobs")
	viper.SetDefault("storage.metrics_key", "queue-stats.json")
	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.client_id", "transcription-service")
	viper.SetDefault("kafka.bootstrap_servers", []string{"localhost:29092"})
	viper.SetDefault("kafka.job_events_topic", "transcription.job-events")
	viper.SetDefault("kafka.scale_events_topic", "transcription.scale-events")
	viper.SetDefault("registry.enabled", false)

	viper.SetEnvPrefix("TRANSCRIBE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.normalize()

	return &config, nil
}

// normalize fills in defaults for values omitted from the file.
func (c *Config) normalize() {
	if c.Queue.Key == "" {
		c.Queue.Key = "transcription:jobs"
	}
	if c.Queue.VisibilityTimeout <= 0 {
		// Generous lease: double the worst observed job duration so an
		// unusually long file does not get redelivered mid-processing.
		c.Queue.VisibilityTimeout = 2 * time.Hour
	}
	if c.Queue.PollWait <= 0 {
		c.Queue.PollWait = 20 * time.Second
	}

	if c.Storage.MetricsKey == "" {
		c.Storage.MetricsKey = "queue-stats.json"
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "us-east-1"
	}

	if c.Worker.ScratchDir == "" {
		c.Worker.ScratchDir = "/tmp/transcription"
	}
	if c.Worker.HeartbeatInterval <= 0 {
		c.Worker.HeartbeatInterval = 30 * time.Second
	}
	if c.Worker.IdleThreshold <= 0 {
		c.Worker.IdleThreshold = time.Hour
	}
	if c.Worker.ErrorBackoff <= 0 {
		c.Worker.ErrorBackoff = 10 * time.Second
	}

	if c.Engine.ChunkSizeSeconds <= 0 {
		c.Engine.ChunkSizeSeconds = 30
	}
	if c.Engine.Language == "" {
		c.Engine.Language = "en"
	}
	if c.Engine.FFmpegBinary == "" {
		c.Engine.FFmpegBinary = "ffmpeg"
	}
	if c.Engine.FFprobeBinary == "" {
		c.Engine.FFprobeBinary = "ffprobe"
	}
	if c.Engine.SplitWorkers <= 0 {
		c.Engine.SplitWorkers = 2
	}

	if c.Inference.Model == "" {
		c.Inference.Model = "large-v3"
	}
	if c.Inference.BatchSize <= 0 {
		c.Inference.BatchSize = 32
	}
	if c.Inference.RequestTimeout <= 0 {
		c.Inference.RequestTimeout = 10 * time.Minute
	}

	if c.Autoscaler.MaxInstances <= 0 {
		c.Autoscaler.MaxInstances = 10
	}
	if c.Autoscaler.MinutesPerInstanceHour <= 0 {
		c.Autoscaler.MinutesPerInstanceHour = 60
	}
	if c.Autoscaler.ScaleUpThreshold <= 0 {
		c.Autoscaler.ScaleUpThreshold = 30
	}
	if c.Autoscaler.ScaleDownThreshold <= 0 {
		c.Autoscaler.ScaleDownThreshold = 10
	}
	if c.Autoscaler.FallbackMinutesPerJob <= 0 {
		c.Autoscaler.FallbackMinutesPerJob = 5
	}
	if c.Autoscaler.FleetTag == "" {
		c.Autoscaler.FleetTag = "whisper-worker"
	}

	if c.Registry.TTL <= 0 {
		c.Registry.TTL = 30 * time.Second
	}
	if c.Registry.RefreshInterval <= 0 {
		c.Registry.RefreshInterval = 10 * time.Second
	}
	if c.Registry.DialTimeout <= 0 {
		c.Registry.DialTimeout = 5 * time.Second
	}

	if c.Database.Charset == "" {
		c.Database.Charset = "utf8mb4"
	}
}

// GetDSN returns the MySQL connection string for the archive database.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// GetRedisAddr returns the host:port address of the queue redis.
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
