// Package storage uploads campaign images (portraits, maps, handouts) to an
// S3-compatible object store and hands back public URLs.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"opentales/app/internal/config"
)

// ErrBucketMissing indicates the configured bucket does not exist yet. The
// handler turns this into a descriptive message instead of a bare 500,
// because the fix (create the bucket) lies outside the app.
var ErrBucketMissing = eris.New("storage bucket does not exist")

// Uploader stores image blobs and returns their public URLs.
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, size int64, body io.Reader) (string, error)
}

// MinioUploader talks to an S3-compatible endpoint through the MinIO client.
type MinioUploader struct {
	client    *minio.Client
	bucket    string
	publicURL string
	logger    *logrus.Logger
}

var _ Uploader = (*MinioUploader)(nil)

// NewUploader builds the uploader from the storage section of the config.
func NewUploader(cfg config.Storage, logger *logrus.Logger) (*MinioUploader, error) {
	if cfg.Endpoint == "" {
		return nil, eris.New("a storage endpoint is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, eris.Wrap(err, "creating storage client")
	}

	return &MinioUploader{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		logger:    logger,
	}, nil
}

// Upload stores the blob under a fresh random name, keeping the original
// extension so browsers infer the type, and returns its public URL.
func (u *MinioUploader) Upload(ctx context.Context, filename, contentType string, size int64, body io.Reader) (string, error) {
	object := uuid.NewString() + strings.ToLower(path.Ext(filename))

	_, err := u.client.PutObject(ctx, u.bucket, object, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchBucket" {
			return "", eris.Wrapf(ErrBucketMissing, "bucket %q", u.bucket)
		}
		wrapped := eris.Wrapf(err, "uploading %s", object)
		if u.logger != nil {
			u.logger.WithFields(logrus.Fields{"object": object, "bucket": u.bucket}).
				WithError(wrapped).Error("upload failed")
		}
		return "", wrapped
	}

	if u.publicURL != "" {
		return fmt.Sprintf("%s/%s/%s", u.publicURL, u.bucket, object), nil
	}
	return fmt.Sprintf("%s/%s/%s", u.client.EndpointURL(), u.bucket, object), nil
}
