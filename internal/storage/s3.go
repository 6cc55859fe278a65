package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

const defaultURLExpiry = time.Hour

// S3Resolver выдает подписанные GET-ссылки на приватные объекты S3-совместимого хранилища
type S3Resolver struct {
	client *s3.S3
	bucket string
	expiry time.Duration
}

// NewS3Resolver creates a resolver for AWS S3 (или совместимого endpoint)
func NewS3Resolver(cfg Config) (*S3Resolver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required for S3")
	}

	awsConfig := &aws.Config{
		Region:      aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	return newS3Resolver(awsConfig, cfg)
}

func newS3Resolver(awsConfig *aws.Config, cfg Config) (*S3Resolver, error) {
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 session: %w", err)
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = defaultURLExpiry
	}

	return &S3Resolver{
		client: s3.New(sess),
		bucket: cfg.Bucket,
		expiry: expiry,
	}, nil
}

// ResolveURL returns a temporary signed URL. Подпись считается локально, без запроса к хранилищу.
func (r *S3Resolver) ResolveURL(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if passthrough(key) {
		return key, nil
	}

	req, _ := r.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(strings.TrimLeft(key, "/")),
	})
	url, err := req.Presign(r.expiry)
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return url, nil
}
