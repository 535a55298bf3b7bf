package resource

import (
	"context"
	"fmt"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"transcription-service/pkg/config"
	"transcription-service/pkg/logger"
)

var (
	minioResourceOnce      sync.Once
	singletonMinioResource *MinioResource
)

// MinioResource holds the object store client for the pipeline bucket.
type MinioResource struct {
	client     *minio.Client
	bucketName string
	region     string
}

// DefaultMinioResource returns the process-wide minio resource.
func DefaultMinioResource() *MinioResource {
	minioResourceOnce.Do(func() {
		singletonMinioResource = &MinioResource{}
	})
	return singletonMinioResource
}

// MustOpen initializes the client and ensures the bucket exists.
func (r *MinioResource) MustOpen() {
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before MinioResource")
	}

	storageCfg := cfg.Storage
	if storageCfg.Endpoint == "" {
		panic("storage endpoint is required")
	}
	if storageCfg.BucketName == "" {
		panic("storage bucket_name is required")
	}

	client, err := minio.New(storageCfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(storageCfg.AccessKeyID, storageCfg.SecretAccessKey, ""),
		Secure: storageCfg.UseSSL,
		Region: storageCfg.Region,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to create minio client: %v", err))
	}

	r.client = client
	r.bucketName = storageCfg.BucketName
	r.region = storageCfg.Region

	r.ensureBucket()

	logger.Info("Object store initialized", map[string]interface{}{
		"endpoint":    storageCfg.Endpoint,
		"bucket_name": r.bucketName,
	})
}

func (r *MinioResource) ensureBucket() {
	ctx := context.Background()
	exists, err := r.client.BucketExists(ctx, r.bucketName)
	if err != nil {
		panic(fmt.Sprintf("failed to check bucket: %v", err))
	}
	if exists {
		return
	}
	if err := r.client.MakeBucket(ctx, r.bucketName, minio.MakeBucketOptions{Region: r.region}); err != nil {
		panic(fmt.Sprintf("failed to create bucket: %v", err))
	}
}

// GetClient returns the minio client.
func (r *MinioResource) GetClient() *minio.Client {
	return r.client
}

// GetBucketName returns the pipeline bucket.
func (r *MinioResource) GetBucketName() string {
	return r.bucketName
}

// Close releases the resource. The minio client holds no persistent
// connections that need closing.
func (r *MinioResource) Close() {}
