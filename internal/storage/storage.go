// Package storage keeps upload blobs in one of two buckets, active or trash,
// on local disk, an S3 compatible store or Google Cloud Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Bucket int

const (
	Active Bucket = iota
	Trash
)

func (b Bucket) String() string {
	if b == Trash {
		return "trash"
	}
	return "active"
}

var ErrNotFound = errors.New("storage: object not found")

// Object is a freshly written blob in the active bucket.
type Object struct {
	Key string
	URL string
}

type Backend interface {
	// Put writes data to the active bucket under a key derived from name.
	Put(ctx context.Context, data []byte, name string) (Object, error)
	// Delete removes key from bucket. It returns ErrNotFound when key is absent.
	Delete(ctx context.Context, bucket Bucket, key string) error
	// Copy duplicates key from one bucket to the other, keeping the key.
	Copy(ctx context.Context, key string, from, to Bucket) error
	// URL is the address a client can fetch key from. Trash blobs may have none.
	URL(bucket Bucket, key string) string
}

type Config struct {
	Type  string      `mapstructure:"type"`
	Local LocalConfig `mapstructure:"local"`
	S3    S3Config    `mapstructure:"s3"`
	GCS   GCSConfig   `mapstructure:"gcs"`
}

const opTimeout = 30 * time.Second

// Open builds the backend named by cfg.Type.
func Open(ctx context.Context, cfg Config, appURL string) (Backend, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocal(cfg.Local.Dir, appURL)
	case "s3":
		s, err := NewS3(cfg.S3)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBuckets(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case "gcs":
		return NewGCS(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
