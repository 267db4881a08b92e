package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint    string `mapstructure:"endpoint"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	Region      string `mapstructure:"region"`
	Bucket      string `mapstructure:"bucket"`
	TrashBucket string `mapstructure:"trash_bucket"`
	UseSSL      bool   `mapstructure:"use_ssl"`
}

// S3 talks to any S3 compatible object store (MinIO, AWS).
type S3 struct {
	client *minio.Client
	cfg    S3Config
}

func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" || cfg.TrashBucket == "" {
		return nil, fmt.Errorf("s3 storage needs both bucket and trash_bucket")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &S3{client: client, cfg: cfg}, nil
}

func (s *S3) bucket(b Bucket) string {
	if b == Trash {
		return s.cfg.TrashBucket
	}
	return s.cfg.Bucket
}

// EnsureBuckets creates the active and trash buckets if they don't exist.
func (s *S3) EnsureBuckets(ctx context.Context) error {
	for _, b := range []Bucket{Active, Trash} {
		name := s.bucket(b)
		exists, err := s.client.BucketExists(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to check bucket %s: %w", name, err)
		}
		if exists {
			continue
		}
		if err := s.client.MakeBucket(ctx, name, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", name, err)
		}
	}
	return nil
}

func (s *S3) Put(ctx context.Context, data []byte, name string) (Object, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := NewKey(name)
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  mimetype.Detect(data).String(),
		UserMetadata: map[string]string{"x-amz-acl": "public-read"},
	})
	if err != nil {
		return Object{}, fmt.Errorf("failed to upload file: %w", err)
	}
	return Object{Key: key, URL: s.URL(Active, key)}, nil
}

// Delete stats the object first since RemoveObject succeeds on missing keys.
func (s *S3) Delete(ctx context.Context, b Bucket, key string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.client.StatObject(ctx, s.bucket(b), key, minio.StatObjectOptions{}); err != nil {
		return s.mapErr(err, "stat", key)
	}
	if err := s.client.RemoveObject(ctx, s.bucket(b), key, minio.RemoveObjectOptions{}); err != nil {
		return s.mapErr(err, "delete", key)
	}
	return nil
}

func (s *S3) Copy(ctx context.Context, key string, from, to Bucket) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket(to), Object: key},
		minio.CopySrcOptions{Bucket: s.bucket(from), Object: key},
	)
	if err != nil {
		return s.mapErr(err, "copy", key)
	}
	return nil
}

func (s *S3) URL(b Bucket, key string) string {
	protocol := "http"
	if s.cfg.UseSSL {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", protocol, s.cfg.Endpoint, s.bucket(b), key)
}

func (s *S3) mapErr(err error, op, key string) error {
	if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
		return ErrNotFound
	}
	return fmt.Errorf("failed to %s %s: %w", op, key, err)
}
