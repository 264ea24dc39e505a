// Package avatars uploads profile pictures to the backend's S3-compatible
// object store.
package avatars

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const (
	DefaultBucket  = "avatars"
	DefaultRegion  = "us-east-1"
	DefaultMaxSize = 5 << 20

	storagePath = "/storage/v1/s3"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrEmpty           = errors.New("image is empty")
)

var allowedTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Credentials authenticate an upload on behalf of a signed-in user: the
// project ref and anon key act as the key pair, the user's access token as
// the session token.
type Credentials struct {
	ProjectRef  string
	AnonKey     string
	AccessToken string
}

type Options struct {
	// BaseURL is the backend gateway; the S3 endpoint lives under it.
	BaseURL string
	Bucket  string
	Region  string
	MaxSize int64

	HTTPClient s3.HTTPClient
	// MaxAttempts bounds the SDK's own retries; zero keeps its default.
	MaxAttempts int
}

type Uploader struct {
	endpoint    string
	bucket      string
	region      string
	maxSize     int64
	httpClient  s3.HTTPClient
	maxAttempts int
}

func NewUploader(opts Options) (*Uploader, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("avatars: base url is required")
	}
	u := &Uploader{
		endpoint:    strings.TrimRight(opts.BaseURL, "/") + storagePath,
		bucket:      opts.Bucket,
		region:      opts.Region,
		maxSize:     opts.MaxSize,
		httpClient:  opts.HTTPClient,
		maxAttempts: opts.MaxAttempts,
	}
	if u.bucket == "" {
		u.bucket = DefaultBucket
	}
	if u.region == "" {
		u.region = DefaultRegion
	}
	if u.maxSize <= 0 {
		u.maxSize = DefaultMaxSize
	}
	return u, nil
}

func (u *Uploader) MaxSize() int64 { return u.maxSize }

func (u *Uploader) Bucket() string { return u.bucket }

// ContentType returns the MIME type for an avatar file name.
func ContentType(name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := allowedTypes[ext]; ok {
		return ct, nil
	}
	if ct := mime.TypeByExtension(ext); strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ct)
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
}

// ObjectKey is where a user's avatar named name is stored. A fresh uuid per
// upload keeps cached copies of an older picture from being served.
func ObjectKey(userID uuid.UUID, name string) string {
	return fmt.Sprintf("%s/%s%s", userID, uuid.New(), strings.ToLower(filepath.Ext(name)))
}

func (u *Uploader) client(creds Credentials) *s3.Client {
	return s3.New(s3.Options{
		Region:       u.region,
		BaseEndpoint: aws.String(u.endpoint),
		UsePathStyle: true,
		Credentials: credentials.NewStaticCredentialsProvider(
			creds.ProjectRef,
			creds.AnonKey,
			creds.AccessToken,
		),
		HTTPClient:                 u.httpClient,
		RetryMaxAttempts:           u.maxAttempts,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
}

// Upload stores data as the user's avatar and returns the object key.
func (u *Uploader) Upload(ctx context.Context, creds Credentials, userID uuid.UUID, name string, data []byte) (string, error) {
	contentType, err := ContentType(name)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if int64(len(data)) > u.maxSize {
		return "", fmt.Errorf("avatar is %d bytes, limit %d", len(data), u.maxSize)
	}

	key := ObjectKey(userID, name)
	_, err = u.client(creds).PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		CacheControl:  aws.String("max-age=3600"),
	})
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", u.bucket, key, err)
	}
	return key, nil
}
