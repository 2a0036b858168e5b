package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"obogportal/internal/config"
)

// UploadURL is a presigned PUT the browser uses to upload an image directly to the bucket.
type UploadURL struct {
	Key       string            `json:"key"`
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ExpiresAt time.Time         `json:"expires_at"`
}

type StorageService interface {
	PresignUpload(ctx context.Context, userID, filename, contentType string) (*UploadURL, error)
}

type storageService struct {
	bucket  string
	ttl     time.Duration
	presign *s3.PresignClient
	now     func() time.Time
}

// NewStorageService returns a service that always answers ErrStorageDisabled when no bucket
// is configured.
func NewStorageService(ctx context.Context, cfg config.StorageConfig) (StorageService, error) {
	if cfg.Bucket == "" {
		return disabledStorage{}, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &storageService{
		bucket:  cfg.Bucket,
		ttl:     cfg.UploadTTL,
		presign: s3.NewPresignClient(client),
		now:     time.Now,
	}, nil
}

func (s *storageService) PresignUpload(ctx context.Context, userID, filename, contentType string) (*UploadURL, error) {
	contentType = strings.TrimSpace(contentType)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: only images can be uploaded", ErrInvalidInput)
	}
	ext := strings.ToLower(path.Ext(path.Base(filename)))
	if ext == "" || len(ext) > 6 {
		return nil, fmt.Errorf("%w: filename needs an image extension", ErrInvalidInput)
	}

	d := s.now().UTC()
	key := fmt.Sprintf("posts/%s/%d/%02d/%s%s", userID, d.Year(), d.Month(), uuid.NewString(), ext)

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("%w: presign upload: %v", ErrUpstream, err)
	}

	return &UploadURL{
		Key:       key,
		URL:       req.URL,
		Method:    req.Method,
		Headers:   map[string]string{"Content-Type": contentType},
		ExpiresAt: d.Add(s.ttl),
	}, nil
}

type disabledStorage struct{}

func (disabledStorage) PresignUpload(context.Context, string, string, string) (*UploadURL, error) {
	return nil, ErrStorageDisabled
}
