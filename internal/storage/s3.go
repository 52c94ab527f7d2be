package storage

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pageza/extended-accounts/backend/config"
)

// S3Storage keeps blobs under a key prefix of an S3 bucket.
type S3Storage struct {
	cfg    *config.S3Config
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Storage stores blobs under prefix in the configured bucket.
func NewS3Storage(cfg *config.S3Config, prefix string) *S3Storage {
	return &S3Storage{cfg: cfg, client: cfg.Client, bucket: cfg.BucketName, prefix: prefix}
}

// SignedURL returns a time-limited download link for name.
func (s *S3Storage) SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	return s.cfg.GeneratePresignedURL(ctx, s.key(name), ttl)
}

func (s *S3Storage) key(name string) string {
	return path.Join(s.prefix, name)
}

func (s *S3Storage) Put(ctx context.Context, name string, r io.Reader) error {
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name)),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	return err
}

func (s *S3Storage) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

// Delete removes the object. S3 deletes are idempotent so a missing key is not reported.
func (s *S3Storage) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	return err
}

func (s *S3Storage) List(ctx context.Context) ([]string, error) {
	prefix := s.prefix
	if prefix != "" {
		prefix += "/"
	}
	var names []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			names = append(names, path.Base(aws.ToString(obj.Key)))
		}
	}
	return names, nil
}

func (s *S3Storage) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	return err == nil, err
}
