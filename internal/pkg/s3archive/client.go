package s3archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v2/log"

	"github.com/wandernook/wandernook/internal/pkg/config"
)

var ErrDisabled = errors.New("invoice archive is disabled")

// objectAPI is the subset of the S3 client used here.
type objectAPI interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Client stores invoice PDFs in an S3 compatible bucket.
type Client struct {
	api    objectAPI
	bucket string
}

// Validate reports the first missing setting of an enabled archive.
func Validate(cfg config.ArchiveConfig) error {
	if !cfg.Enabled {
		return ErrDisabled
	}
	switch {
	case cfg.AccessKeyID == "":
		return errors.New("S3_ACCESS_KEY_ID is required when the invoice archive is enabled")
	case cfg.SecretAccessKey == "":
		return errors.New("S3_SECRET_ACCESS_KEY is required when the invoice archive is enabled")
	case cfg.BucketName == "":
		return errors.New("S3_BUCKET_NAME is required when the invoice archive is enabled")
	}
	return nil
}

func NewClient(ctx context.Context, cfg config.ArchiveConfig) (*Client, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			// S3 compatible services (Backblaze B2, MinIO) need path-style URLs
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	c := &Client{api: s3Client, bucket: cfg.BucketName}
	if _, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		return nil, fmt.Errorf("bucket %s not accessible: %w", c.bucket, err)
	}

	log.Infof("[Archive] Initialized S3 client for bucket: %s", c.bucket)
	return c, nil
}

func (c *Client) Bucket() string { return c.bucket }

func (c *Client) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
		Metadata: map[string]string{
			"upload-source": "wandernook-invoices",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Infof("[Archive] Uploaded s3://%s/%s (%d bytes)", c.bucket, key, len(body))
	return nil
}

func (c *Client) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}
