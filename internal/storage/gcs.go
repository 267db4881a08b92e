package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"github.com/gabriel-vasile/mimetype"
	"google.golang.org/api/option"
)

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	TrashBucket     string `mapstructure:"trash_bucket"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type GCS struct {
	client *gcs.Client
	cfg    GCSConfig
}

func NewGCS(ctx context.Context, cfg GCSConfig) (*GCS, error) {
	if cfg.Bucket == "" || cfg.TrashBucket == "" {
		return nil, fmt.Errorf("gcs storage needs both bucket and trash_bucket")
	}
	opts := []option.ClientOption{option.WithScopes(gcs.ScopeReadWrite)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCS{client: client, cfg: cfg}, nil
}

func (g *GCS) bucket(b Bucket) string {
	if b == Trash {
		return g.cfg.TrashBucket
	}
	return g.cfg.Bucket
}

func (g *GCS) object(b Bucket, key string) *gcs.ObjectHandle {
	return g.client.Bucket(g.bucket(b)).Object(key)
}

func (g *GCS) Put(ctx context.Context, data []byte, name string) (Object, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := NewKey(name)
	w := g.object(Active, key).NewWriter(ctx)
	w.ContentType = mimetype.Detect(data).String()
	w.PredefinedACL = "publicRead"
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return Object{}, fmt.Errorf("failed to write GCS object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return Object{}, fmt.Errorf("failed to finalize GCS object %q: %w", key, err)
	}
	return Object{Key: key, URL: g.URL(Active, key)}, nil
}

func (g *GCS) Delete(ctx context.Context, b Bucket, key string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := g.object(b, key).Delete(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, g.bucket(b), err)
	}
	return nil
}

func (g *GCS) Copy(ctx context.Context, key string, from, to Bucket) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	copier := g.object(to, key).CopierFrom(g.object(from, key))
	if to == Active {
		copier.PredefinedACL = "publicRead"
	} else {
		copier.PredefinedACL = "projectPrivate"
	}
	if _, err := copier.Run(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("copy %s %s->%s: %w", key, from, to, err)
	}
	return nil
}

func (g *GCS) URL(b Bucket, key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket(b), key)
}

func (g *GCS) Close() error {
	return g.client.Close()
}
