package objectstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds MinIO connection configuration
type Config struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Region         string
	UseSSL         bool
	InboundBucket  string
	OutboundBucket string
	RetryAttempts  int
	RetryInterval  time.Duration
}

// Client wraps a MinIO client bound to an inbound and an outbound bucket
type Client struct {
	client         *minio.Client
	inboundBucket  string
	outboundBucket string
	logger         *slog.Logger
}

// NewClient connects to MinIO and makes sure the outbound bucket exists
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	mc, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	c := &Client{
		client:         mc,
		inboundBucket:  config.InboundBucket,
		outboundBucket: config.OutboundBucket,
		logger:         logger,
	}

	attempts := config.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		err = c.ensureBucket(context.Background(), c.outboundBucket)
		if err == nil {
			break
		}

		logger.Error("Failed to reach MinIO",
			slog.String("endpoint", config.Endpoint),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)

		if attempt < attempts {
			time.Sleep(config.RetryInterval)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MinIO after %d attempts: %w", attempts, err)
	}

	logger.Info("Successfully connected to MinIO",
		slog.String("endpoint", config.Endpoint),
		slog.String("inbound_bucket", c.inboundBucket),
		slog.String("outbound_bucket", c.outboundBucket),
	)

	return c, nil
}

func (c *Client) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	c.logger.Info("Bucket created", slog.String("bucket", bucket))
	return nil
}

// PresignInbound returns a time-limited GET URL for an inbound object
func (c *Client) PresignInbound(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	if _, err := c.client.StatObject(ctx, c.inboundBucket, objectName, minio.StatObjectOptions{}); err != nil {
		return "", fmt.Errorf("stat %s/%s: %w", c.inboundBucket, objectName, err)
	}

	presigned, err := c.client.PresignedGetObject(ctx, c.inboundBucket, objectName, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", c.inboundBucket, objectName, err)
	}
	return presigned.String(), nil
}

// PutOutbound uploads a local file to the outbound bucket. Bytes read by the
// uploader are mirrored to progress when it is non-nil.
func (c *Client) PutOutbound(ctx context.Context, objectName, filePath, contentType string, progress io.Reader) (int64, error) {
	info, err := c.client.FPutObject(ctx, c.outboundBucket, objectName, filePath, minio.PutObjectOptions{
		ContentType: contentType,
		Progress:    progress,
	})
	if err != nil {
		return 0, fmt.Errorf("put %s/%s: %w", c.outboundBucket, objectName, err)
	}
	return info.Size, nil
}

// PresignOutbound returns a time-limited GET URL for an uploaded artifact
func (c *Client) PresignOutbound(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	presigned, err := c.client.PresignedGetObject(ctx, c.outboundBucket, objectName, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", c.outboundBucket, objectName, err)
	}
	return presigned.String(), nil
}
