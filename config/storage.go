package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config is the client and bucket used for profile images when
// STORAGE_BACKEND=s3.
type S3Config struct {
	Client     *s3.Client
	BucketName string

	presign *s3.PresignClient
}

// NewS3Config loads AWS credentials from the default chain. S3_BUCKET_NAME
// must be set.
func NewS3Config(ctx context.Context, cfg *Config) (*S3Config, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 bucket name is required")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Config{
		Client:     client,
		BucketName: cfg.S3Bucket,
		presign:    s3.NewPresignClient(client),
	}, nil
}

// GeneratePresignedURL signs a GET for objectKey valid for expiration.
func (s *S3Config) GeneratePresignedURL(ctx context.Context, objectKey string, expiration time.Duration) (string, error) {
	presign := s.presign
	if presign == nil {
		presign = s3.NewPresignClient(s.Client)
	}
	req, err := presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.BucketName),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(expiration))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectKey, err)
	}
	return req.URL, nil
}
