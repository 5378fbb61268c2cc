package filesvc

import (
	"bytes"
	"context"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/uzielB/backend-sistemagem-sub000/core"
)

type MinioStore struct {
	raw    *minio.Client
	bucket string
}

var _ core.FileStore = (*MinioStore)(nil)

// NewMinioStore returns a store writing to the configured bucket, creating it when missing.
func NewMinioStore(ctx context.Context, conf *core.Config) (*MinioStore, error) {
	client, err := minio.New(conf.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.Storage.AccessKeyID, conf.Storage.SecretAccessKey, ""),
		Secure: conf.Storage.UseSSL,
		Region: conf.Storage.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating minio client")
	}

	exists, err := client.BucketExists(ctx, conf.Storage.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "checking bucket")
	}
	if !exists {
		err = client.MakeBucket(ctx, conf.Storage.Bucket, minio.MakeBucketOptions{Region: conf.Storage.Region})
		if err != nil {
			return nil, errors.Wrap(err, "creating bucket")
		}
	}
	return &MinioStore{raw: client, bucket: conf.Storage.Bucket}, nil
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.raw.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return errors.Wrapf(err, "putting object %q", key)
}

func (s *MinioStore) PresignedURL(ctx context.Context, key, filename string, expiry time.Duration) (string, error) {
	params := make(url.Values)
	params.Set("response-content-disposition", `attachment; filename="`+filename+`"`)

	u, err := s.raw.PresignedGetObject(ctx, s.bucket, key, expiry, params)
	if err != nil {
		return "", errors.Wrapf(err, "presigning object %q", key)
	}
	return u.String(), nil
}
