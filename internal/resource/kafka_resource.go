package resource

import (
	"sync"

	"transcription-service/pkg/config"
	"transcription-service/pkg/kafka"
)

var (
	kafkaResourceOnce      sync.Once
	singletonKafkaResource *KafkaResource
)

// KafkaResource holds the producer client for lifecycle events.
type KafkaResource struct {
	client *kafka.Client
}

// DefaultKafkaResource returns the process-wide kafka resource.
func DefaultKafkaResource() *KafkaResource {
	kafkaResourceOnce.Do(func() {
		singletonKafkaResource = &KafkaResource{}
	})
	return singletonKafkaResource
}

// MustOpen builds the producer client. Safe to skip when kafka is disabled.
func (r *KafkaResource) MustOpen() {
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before KafkaResource")
	}
	r.client = kafka.NewClient(cfg.Kafka)
}

// GetClient returns the kafka producer client, or nil when never opened.
func (r *KafkaResource) GetClient() *kafka.Client {
	return r.client
}

// Close shuts down topic writers.
func (r *KafkaResource) Close() {
	if r.client != nil {
		r.client.Close()
	}
}
