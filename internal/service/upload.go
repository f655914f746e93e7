package service

import (
	"context"
	"errors"
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
)

// UploadURLExpiry is how long a presigned upload URL stays valid.
const UploadURLExpiry = 15 * time.Minute

// ErrUploadsDisabled is returned when no bucket is configured.
var ErrUploadsDisabled = errors.New("uploads are not configured")

// Presigner signs S3 PUT requests. *s3.PresignClient satisfies it.
type Presigner interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config holds the object storage settings.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // e.g. http://localhost:9000 for MinIO; empty for AWS
	AccessKey string
	SecretKey string
}

// NewS3Presigner builds a presign client from cfg. Static credentials are
// used when an access key is set; otherwise the default AWS chain applies.
func NewS3Presigner(ctx context.Context, cfg S3Config) (*s3.PresignClient, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("service.NewS3Presigner: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return s3.NewPresignClient(client), nil
}

// Upload is a presigned PUT for one media object.
type Upload struct {
	Key       string
	URL       string
	Method    string
	ExpiresAt time.Time
}

// UploadService hands out presigned upload URLs for ride media.
type UploadService struct {
	rides   *RideService
	presign Presigner
	bucket  string
	now     func() time.Time
}

// NewUploadService constructs an UploadService. A nil presigner disables
// uploads.
func NewUploadService(rides *RideService, presign Presigner, bucket string) *UploadService {
	return &UploadService{rides: rides, presign: presign, bucket: bucket, now: time.Now}
}

// UploadURL returns a presigned PUT URL for a new object under the ride.
// The ride is read first so only its owner can upload.
func (s *UploadService) UploadURL(ctx context.Context, userID, rideID, filename, contentType string) (Upload, error) {
	if s == nil || s.presign == nil {
		return Upload{}, ErrUploadsDisabled
	}
	if _, err := s.rides.Get(ctx, userID, rideID); err != nil {
		return Upload{}, fmt.Errorf("service.UploadService.UploadURL: %w", err)
	}

	key := objectKey(rideID, filename)
	in := &s3.PutObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	req, err := s.presign.PresignPutObject(ctx, in, s3.WithPresignExpires(UploadURLExpiry))
	if err != nil {
		return Upload{}, fmt.Errorf("service.UploadService.UploadURL: %w", err)
	}
	return Upload{Key: key, URL: req.URL, Method: req.Method, ExpiresAt: s.now().Add(UploadURLExpiry)}, nil
}

// objectKey is rides/<rideID>/<uuid><ext>. Only the extension of the client
// filename is kept.
func objectKey(rideID, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, `\`, "/"))))
	if len(ext) > 10 || strings.ContainsAny(ext, " ?#%") {
		ext = ""
	}
	return "rides/" + rideID + "/" + uuid.NewString() + ext
}
