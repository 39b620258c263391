package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/storage/s3/v2"
)

// S3Config holds bucket credentials.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// S3 stores files in an S3-compatible bucket.
type S3 struct {
	bucket *s3.Storage
	name   string
}

// NewS3 connects to the bucket described by cfg.
func NewS3(cfg S3Config) *S3 {
	return &S3{name: cfg.Bucket, bucket: s3.New(s3.Config{
		Bucket:   cfg.Bucket,
		Endpoint: cfg.Endpoint,
		Region:   cfg.Region,
		Reset:    false,
		Credentials: s3.Credentials{
			AccessKey:       cfg.AccessKey,
			SecretAccessKey: cfg.SecretKey,
		},
	})}
}

// Save writes through the SDK client so the object keeps its Content-Type;
// the storage Set method uploads without one.
func (s *S3) Save(ctx context.Context, key string, data []byte, contentType string) error {
	if _, err := s.bucket.Conn().PutObject(ctx, putObjectInput(s.name, key, data, contentType)); err != nil {
		return fmt.Errorf("storage.S3.Save: %w", err)
	}
	return nil
}

func putObjectInput(bucket, key string, data []byte, contentType string) *awss3.PutObjectInput {
	in := &awss3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	return in
}

// Delete relies on DeleteObject succeeding for absent keys.
func (s *S3) Delete(_ context.Context, key string) error {
	if err := s.bucket.Delete(key); err != nil {
		return fmt.Errorf("storage.S3.Delete: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *S3) Close() error {
	return s.bucket.Close()
}
