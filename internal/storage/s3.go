package storage

import (
	"context"
	"mime"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const s3Scheme = "s3://"

// S3Config holds connection settings for an S3-compatible object store.
type S3Config struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint" validate:"required"`
	AccessKey string `json:"access_key" yaml:"access_key"`
	SecretKey string `json:"secret_key" yaml:"secret_key"`
	Region    string `json:"region,omitempty" yaml:"region,omitempty"`
	UseSSL    bool   `json:"use_ssl" yaml:"use_ssl"`
}

// S3Writer stores files as objects. Paths have the form
// "s3://bucket/key".
type S3Writer struct {
	api    *minio.Client
	bucket string
}

// NewS3Writer connects to the store and creates bucket if it does not exist.
func NewS3Writer(ctx context.Context, bucket string, cfg S3Config) (*S3Writer, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, &WriteError{Path: s3Scheme + bucket, Message: "failed to create S3 client", Cause: err}
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, &WriteError{Path: s3Scheme + bucket, Message: "failed to check bucket", Cause: err}
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, &WriteError{Path: s3Scheme + bucket, Message: "failed to create bucket", Cause: err}
		}
	}

	return &S3Writer{api: client, bucket: bucket}, nil
}

// WriteText uploads content as a single object.
func (w *S3Writer) WriteText(ctx context.Context, location, content string) error {
	bucket, key, err := ParseS3Location(location)
	if err != nil {
		return err
	}
	if bucket != w.bucket {
		return &WriteError{Path: location, Message: "bucket does not match writer bucket " + w.bucket}
	}
	if key == "" {
		return &WriteError{Path: location, Message: "missing object key"}
	}

	_, err = w.api.PutObject(ctx, bucket, key, strings.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: ObjectContentType(key)})
	if err != nil {
		return &WriteError{Path: location, Message: "failed to upload object", Cause: err}
	}
	return nil
}

// ParseS3Location splits "s3://bucket/some/key" into its bucket and key.
func ParseS3Location(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, s3Scheme)
	if !ok {
		return "", "", &WriteError{Path: location, Message: "not an s3:// location"}
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", &WriteError{Path: location, Message: "missing bucket name"}
	}
	return bucket, strings.Trim(key, "/"), nil
}

// ObjectContentType guesses the MIME type from the key's extension.
func ObjectContentType(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "text/plain; charset=utf-8"
}
