// Package attachments issues presigned S3 upload URLs for chat images.
// Clients PUT the image directly to S3 and then post a message whose
// image_url is the returned object URL.
package attachments

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/config"
	"github.com/aslmarket/aslmatch/internal/pkg/clock"
	"github.com/aslmarket/aslmatch/internal/pkg/logger"
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Presigner signs S3 PutObject requests. *s3.PresignClient satisfies it.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Upload is a presigned upload the client performs itself.
type Upload struct {
	Method    string            `json:"method"`
	UploadURL string            `json:"upload_url"`
	Headers   map[string]string `json:"headers"`
	Key       string            `json:"key"`
	ImageURL  string            `json:"image_url"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Service issues upload URLs.
type Service struct {
	presigner Presigner
	bucket    string
	region    string
	prefix    string
	ttl       time.Duration
	maxBytes  int64
	clock     clock.Clock
}

// New creates a Service from an existing presigner.
func New(p Presigner, cfg config.AttachmentsConfig, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{
		presigner: p,
		bucket:    cfg.S3Bucket,
		region:    cfg.S3Region,
		prefix:    strings.Trim(cfg.KeyPrefix, "/"),
		ttl:       cfg.PresignTTL(),
		maxBytes:  cfg.MaxBytes,
		clock:     clk,
	}
}

// NewFromConfig builds a Service on an S3 presign client. Static keys from
// the config win; otherwise credentials resolve the default way (env,
// shared profile, instance role).
func NewFromConfig(ctx context.Context, cfg config.AttachmentsConfig) (*Service, *s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	switch {
	case cfg.AccessKeyID != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	case cfg.AWSProfile != "":
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return New(s3.NewPresignClient(client), cfg, nil), client, nil
}

// Bucket returns the configured bucket name.
func (s *Service) Bucket() string { return s.bucket }

// UploadURL presigns a PUT of one image into the request's folder.
func (s *Service) UploadURL(ctx context.Context, requestID, uploaderID, contentType string, size int64) (*Upload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	ext, ok := allowedTypes[contentType]
	if !ok {
		return nil, apperr.Validation("unsupported image type %q", contentType)
	}
	if size <= 0 {
		return nil, apperr.Validation("content length is required")
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return nil, apperr.Validation("image is larger than %d bytes", s.maxBytes)
	}

	key := path.Join(s.prefix, requestID, uploaderID, uuid.New().String()+ext)
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return nil, apperr.Transient("presign upload", err)
	}

	logger.Debug("attachment upload presigned", "request_id", requestID, "key", key)
	return &Upload{
		Method:    req.Method,
		UploadURL: req.URL,
		Headers:   map[string]string{"Content-Type": contentType},
		Key:       key,
		ImageURL:  s.ObjectURL(key),
		ExpiresAt: s.clock.Now().Add(s.ttl),
	}, nil
}

// ObjectURL returns the virtual-hosted URL of key.
func (s *Service) ObjectURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// Owns reports whether imageURL points into requestID's folder of this
// bucket, so chat messages cannot reference arbitrary objects.
func (s *Service) Owns(requestID, imageURL string) bool {
	prefix := s.ObjectURL(path.Join(s.prefix, requestID)) + "/"
	return strings.HasPrefix(imageURL, prefix)
}
