// Package objectstore persists generated artifacts and returns their public URLs.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ContentTypePNG is the content type of every uploaded artifact.
const ContentTypePNG = "image/png"

// Uploader is the subset of the S3 upload manager the store uses.
type Uploader interface {
	Upload(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Config holds configuration for the S3 store.
type S3Config struct {
	Region         string
	Bucket         string
	Endpoint       string
	ForcePathStyle bool
	PublicBaseURL  string
	RequestTimeout time.Duration
}

// S3Store uploads artifacts to one bucket.
type S3Store struct {
	uploader Uploader
	config   S3Config
}

// NewS3Store builds an S3 client and upload manager from awsCfg.
func NewS3Store(awsCfg aws.Config, cfg S3Config) *S3Store {
	var s3Options []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsCfg, s3Options...)
	return NewS3StoreWithUploader(manager.NewUploader(client), cfg)
}

// NewS3StoreWithUploader creates a store around an existing uploader.
func NewS3StoreWithUploader(uploader Uploader, cfg S3Config) *S3Store {
	return &S3Store{uploader: uploader, config: cfg}
}

// Upload writes data under key in a single put and returns its public URL.
func (s *S3Store) Upload(ctx context.Context, data []byte, key string) (string, error) {
	if key == "" {
		return "", errors.New("key cannot be empty")
	}
	if len(data) == 0 {
		return "", errors.New("data cannot be empty")
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ContentTypePNG),
	}

	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return s.URL(key), nil
}

// URL returns the public URL of key.
func (s *S3Store) URL(key string) string {
	if s.config.PublicBaseURL != "" {
		return strings.TrimSuffix(s.config.PublicBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.config.Bucket, s.config.Region, key)
}
