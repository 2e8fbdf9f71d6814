package storage

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
)

// s3Storage stores objects under s3://bucket/prefix. Credentials and region
// come from the usual AWS environment/shared-config chain.
type s3Storage struct {
	uri    string
	bucket string
	prefix string
	client s3iface.S3API
}

func newS3Storage(uri *url.URL) (Storage, error) {
	if uri.Host == "" {
		return nil, errors.Errorf("s3 storage uri '%s' has no bucket", uri.String())
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create aws session")
	}
	return &s3Storage{
		uri:    uri.String(),
		bucket: uri.Host,
		prefix: strings.TrimPrefix(uri.Path, "/"),
		client: s3.New(sess),
	}, nil
}

func (s *s3Storage) URI() string {
	return s.uri
}

func (s *s3Storage) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *s3Storage) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
		Body:   bytes.NewReader(data),
	})
	return errors.Wrapf(err, "failed to put object '%s' to '%s'", key, s.uri)
}

func (s *s3Storage) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get object '%s' from '%s'", key, s.uri)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read object '%s'", key)
	}
	return data, nil
}

func (s *s3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	return errors.Wrapf(err, "failed to delete object '%s' from '%s'", key, s.uri)
}

func init() {
	RegisterScheme("s3", newS3Storage)
}
