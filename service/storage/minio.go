package storage

import (
	"context"
	"fmt"
	"path/filepath"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/khaledhikmat/framepred-go/service/config"
)

type minioService struct {
	client *miniogo.Client
	bucket string
	prefix string
}

// NewMinio uploads checkpoints into a bucket, keyed by prefix/basename.
func NewMinio(params config.StorageParameters, prefix string) (IService, error) {
	client, err := miniogo.New(params.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(params.AccessKey, params.SecretKey, ""),
		Secure: params.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &minioService{
		client: client,
		bucket: params.Bucket,
		prefix: prefix,
	}, nil
}

func (svc *minioService) ensureBucket(ctx context.Context) error {
	exists, err := svc.client.BucketExists(ctx, svc.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", svc.bucket, err)
	}
	if !exists {
		if err := svc.client.MakeBucket(ctx, svc.bucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", svc.bucket, err)
		}
	}
	return nil
}

func (svc *minioService) StoreFile(ctx context.Context, fileName string) (string, error) {
	if err := svc.ensureBucket(ctx); err != nil {
		return "", err
	}

	key := filepath.Base(fileName)
	if svc.prefix != "" {
		key = svc.prefix + "/" + key
	}

	_, err := svc.client.FPutObject(ctx, svc.bucket, key, fileName, miniogo.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", fileName, err)
	}

	return fmt.Sprintf("%s/%s/%s", svc.client.EndpointURL(), svc.bucket, key), nil
}
