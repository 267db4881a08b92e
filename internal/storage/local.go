package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

type LocalConfig struct {
	Dir string `mapstructure:"dir"`
}

// Local stores blobs under <root>/uploads and <root>/trash.
type Local struct {
	root   string
	appURL string
}

func NewLocal(root, appURL string) (*Local, error) {
	if root == "" {
		root = "tmp"
	}
	l := &Local{root: root, appURL: strings.TrimRight(appURL, "/")}
	for _, b := range []Bucket{Active, Trash} {
		if err := os.MkdirAll(l.Dir(b), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", b, err)
		}
	}
	return l, nil
}

// Dir is the directory holding bucket b.
func (l *Local) Dir(b Bucket) string {
	if b == Trash {
		return filepath.Join(l.root, "trash")
	}
	return filepath.Join(l.root, "uploads")
}

func (l *Local) path(b Bucket, key string) (string, error) {
	if key == "" || filepath.Base(key) != key || key == "." || key == ".." {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(l.Dir(b), key), nil
}

func (l *Local) Put(ctx context.Context, data []byte, name string) (Object, error) {
	key := NewKey(name)
	p, err := l.path(Active, key)
	if err != nil {
		return Object{}, err
	}
	if err := atomic.WriteFile(p, bytes.NewReader(data)); err != nil {
		return Object{}, fmt.Errorf("write %s: %w", key, err)
	}
	return Object{Key: key, URL: l.URL(Active, key)}, nil
}

func (l *Local) Delete(ctx context.Context, b Bucket, key string) error {
	p, err := l.path(b, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("remove %s from %s: %w", key, b, err)
	}
	return nil
}

func (l *Local) Copy(ctx context.Context, key string, from, to Bucket) error {
	src, err := l.path(from, key)
	if err != nil {
		return err
	}
	dst, err := l.path(to, key)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("read %s from %s: %w", key, from, err)
	}
	if err := atomic.WriteFile(dst, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s to %s: %w", key, to, err)
	}
	return nil
}

// URL points into the /files route for active blobs. Trash is not served.
func (l *Local) URL(b Bucket, key string) string {
	if b == Trash {
		return ""
	}
	return l.appURL + "/files/" + url.PathEscape(key)
}
