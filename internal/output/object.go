package output

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectConfig configures an S3-compatible artifact bucket.
type ObjectConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	// Prefix is prepended to every object key.
	Prefix string
	UseSSL bool
}

// ObjectWriter stores artifacts in an S3-compatible bucket. A single
// PutObject is atomic, so no temp objects are needed.
type ObjectWriter struct {
	client *minio.Client
	bucket string
	region string
	prefix string

	initOnce sync.Once
	initErr  error
}

func NewObjectWriter(cfg ObjectConfig) (*ObjectWriter, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("object store endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("object store access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("object store bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store client: %w", err)
	}
	return &ObjectWriter{
		client: client,
		bucket: bucket,
		region: region,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (w *ObjectWriter) ensureBucket(ctx context.Context) error {
	w.initOnce.Do(func() {
		exists, err := w.client.BucketExists(ctx, w.bucket)
		if err != nil {
			w.initErr = err
			return
		}
		if exists {
			return
		}
		w.initErr = w.client.MakeBucket(ctx, w.bucket, minio.MakeBucketOptions{Region: w.region})
	})
	return w.initErr
}

func (w *ObjectWriter) Prepare(ctx context.Context) error {
	if err := w.ensureBucket(ctx); err != nil {
		return fmt.Errorf("%w: bucket %s: %v", ErrRootUnwritable, w.bucket, err)
	}
	return nil
}

func (w *ObjectWriter) Write(ctx context.Context, rel string, data []byte) error {
	if err := w.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	key := w.Key(rel)
	_, err := w.client.PutObject(ctx, w.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType(rel),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Key is the object key an artifact path is stored under.
func (w *ObjectWriter) Key(rel string) string {
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	if w.prefix == "" {
		return rel
	}
	return w.prefix + "/" + rel
}

func contentType(rel string) string {
	switch path.Ext(rel) {
	case ".js":
		return "text/javascript"
	case ".ts":
		return "application/typescript"
	case ".as":
		return "text/plain"
	}
	return "application/octet-stream"
}
