package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pagopa/interop-tracing-core-sub000/internal/config"
)

// BucketStore abstracts the object operations the pipeline needs, so the
// engine and consumers can be tested against an in-memory fake.
type BucketStore interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	PutObject(ctx context.Context, bucket, key string, body []byte) error
	CopyObject(ctx context.Context, srcBucket, dstBucket, key string) error
	RemoveObject(ctx context.Context, bucket, key string) error
	ObjectExists(ctx context.Context, bucket, key string) (bool, error)
}

// Client is the minio-backed BucketStore used in production.
type Client struct {
	mc *minio.Client
}

// NewClient connects to the object store and makes sure every configured
// bucket exists. Startup retries cover the store coming up after us.
func NewClient(ctx context.Context, cfg config.StorageConfig) (*Client, error) {
	var mc *minio.Client
	var err error
	for i := 0; i < 10; i++ {
		mc, err = minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		})
		if err == nil {
			if err = ensureBuckets(ctx, mc, cfg.RawBucket, cfg.EnrichedBucket, cfg.ReplacingBucket); err == nil {
				return &Client{mc: mc}, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second * time.Duration(1+i)):
		}
	}
	return nil, fmt.Errorf("object storage not ready: %w", err)
}

func ensureBuckets(ctx context.Context, mc *minio.Client, buckets ...string) error {
	for _, bucket := range buckets {
		exists, err := mc.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// GetObject reads a whole object into memory.
func (c *Client) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := c.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	body, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", bucket, key, err)
	}
	return body, nil
}

// PutObject writes body as a CSV object.
func (c *Client) PutObject(ctx context.Context, bucket, key string, body []byte) error {
	reader := bytes.NewReader(body)
	_, err := c.mc.PutObject(ctx, bucket, key, reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: "text/csv",
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// ObjectExists reports whether key is present in bucket.
func (c *Client) ObjectExists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := c.mc.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat s3://%s/%s: %w", bucket, key, err)
	}
	return true, nil
}

// RemoveObject deletes key from bucket.
func (c *Client) RemoveObject(ctx context.Context, bucket, key string) error {
	if err := c.mc.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// CopyObject copies key from srcBucket to dstBucket server-side.
func (c *Client) CopyObject(ctx context.Context, srcBucket, dstBucket, key string) error {
	_, err := c.mc.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: dstBucket, Object: key},
		minio.CopySrcOptions{Bucket: srcBucket, Object: key},
	)
	if err != nil {
		return fmt.Errorf("failed to copy s3://%s/%s to %s: %w", srcBucket, key, dstBucket, err)
	}
	return nil
}
