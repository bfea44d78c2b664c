package blob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/platinummonkey/mediagate/pkg/blob")

// S3Config locates the bucket
type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	// TTL bounds how long presigned URLs stay valid
	TTL time.Duration
}

// S3Store presigns GET and PUT requests against an S3-compatible bucket
type S3Store struct {
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
	now     func() time.Time
}

// NewS3Store builds a presigning client. Presigning is local; no request is
// made to the bucket here.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		// static credentials (MinIO or explicit keys); otherwise the default chain
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Store{
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		ttl:     cfg.TTL,
		now:     time.Now,
	}, nil
}

// UploadURL implements Store
func (s *S3Store) UploadURL(ctx context.Context, contentType string) (*Upload, error) {
	ref := refPrefix + uuid.NewString()
	ctx, span := tracer.Start(ctx, "S3.PresignPutObject",
		trace.WithAttributes(
			attribute.String("s3.bucket", s.bucket),
			attribute.String("s3.key", ref),
		),
	)
	defer span.End()

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	req, err := s.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(s.ttl))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "presign failed")
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &Upload{Ref: ref, URL: req.URL, ExpiresAt: s.now().Add(s.ttl)}, nil
}

// URL implements Store
func (s *S3Store) URL(ctx context.Context, ref string) (string, error) {
	if !strings.HasPrefix(ref, refPrefix) {
		return "", nil
	}
	ctx, span := tracer.Start(ctx, "S3.PresignGetObject",
		trace.WithAttributes(
			attribute.String("s3.bucket", s.bucket),
			attribute.String("s3.key", ref),
		),
	)
	defer span.End()

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "presign failed")
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return req.URL, nil
}
