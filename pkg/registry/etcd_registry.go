package registry

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"transcription-service/pkg/logger"
)

// WorkerRegistry registers transcription workers into etcd under a
// lease-backed key so monitors can watch fleet membership live. The object
// store heartbeat document remains the durable record; this registration is a
// liveness signal that disappears automatically when the lease lapses.
type WorkerRegistry struct {
	client   *clientv3.Client
	fleetTag string
	workerID string
	ttl      int64
	leaseID  clientv3.LeaseID
	ctx      context.Context
	cancel   context.CancelFunc
}

// RegistryConfig defines etcd client configuration.
type RegistryConfig struct {
	Endpoints   []string
	DialTimeout time.Duration
	Username    string
	Password    string
	TTL         time.Duration
}

// NewWorkerRegistry creates a registry handle for one worker.
func NewWorkerRegistry(cfg RegistryConfig, fleetTag, workerID string) (*WorkerRegistry, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create etcd client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	ttl := int64(cfg.TTL.Seconds())
	if ttl <= 0 {
		ttl = 30
	}

	return &WorkerRegistry{
		client:   client,
		fleetTag: fleetTag,
		workerID: workerID,
		ttl:      ttl,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Register writes the worker key under a lease and starts keep-alive.
func (r *WorkerRegistry) Register(value string) error {
	leaseResp, err := r.client.Grant(r.ctx, r.ttl)
	if err != nil {
		return fmt.Errorf("grant lease: %w", err)
	}
	r.leaseID = leaseResp.ID

	key := fmt.Sprintf("/workers/%s/%s", r.fleetTag, r.workerID)
	if _, err := r.client.Put(r.ctx, key, value, clientv3.WithLease(r.leaseID)); err != nil {
		return fmt.Errorf("register worker: %w", err)
	}

	go r.keepAlive()

	logger.Infof("Worker registered in etcd key=%s ttl=%ds", key, r.ttl)
	return nil
}

func (r *WorkerRegistry) keepAlive() {
	ch, err := r.client.KeepAlive(r.ctx, r.leaseID)
	if err != nil {
		logger.Warnf("Worker lease keep-alive failed worker_id=%s error=%v", r.workerID, err)
		return
	}
	for {
		select {
		case <-r.ctx.Done():
			return
		case ka := <-ch:
			if ka == nil {
				logger.Warnf("Worker lease keep-alive channel closed worker_id=%s", r.workerID)
				return
			}
		}
	}
}

// Deregister revokes the lease and closes the client.
func (r *WorkerRegistry) Deregister() error {
	r.cancel()
	if r.leaseID != 0 {
		if _, err := r.client.Revoke(context.Background(), r.leaseID); err != nil {
			logger.Warnf("Worker lease revoke failed worker_id=%s error=%v", r.workerID, err)
		}
	}
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("close etcd client: %w", err)
	}
	logger.Infof("Worker deregistered from etcd worker_id=%s", r.workerID)
	return nil
}
