// Package storagesvc stores lesson files.
package storagesvc

import (
	"context"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

type minioStorage struct {
	client *minio.Client
	bucket string
	region string
	logger core.Logger

	ensureMu      sync.Mutex
	bucketEnsured bool
}

var _ core.FileStorage = (*minioStorage)(nil)

// NewMinIOStorage connects to the configured S3 compatible endpoint.
// The bucket is created on first use when missing.
func NewMinIOStorage(conf core.StorageConfig, logger core.Logger) (core.FileStorage, error) {
	client, err := minio.New(conf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.AccessKey, conf.SecretKey, ""),
		Secure: conf.UseSSL,
		Region: conf.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating minio client")
	}
	return &minioStorage{client: client, bucket: conf.Bucket, region: conf.Region, logger: logger}, nil
}

func (s *minioStorage) ensureBucket(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.bucketEnsured {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrap(err, "checking bucket")
	}
	if !exists {
		if err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return errors.Wrap(err, "creating bucket")
		}
		s.logger.Info("created storage bucket", map[string]interface{}{"bucket": s.bucket})
	}
	s.bucketEnsured = true
	return nil
}

func (s *minioStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	return errors.Wrap(err, "uploading object")
}

func (s *minioStorage) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", errors.Wrap(err, "presigning object url")
	}
	return u.String(), nil
}

func (s *minioStorage) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	return errors.Wrap(err, "removing object")
}
