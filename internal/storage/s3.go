// internal/storage/s3.go
package storage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/openshelf/catalog-backend/internal/config"
)

// S3Store keeps blobs as objects in a single S3 bucket. It satisfies the
// same contract as DiskStore so either can back the image lifecycle.
type S3Store struct {
	client *s3.S3
	bucket string
}

func NewS3Store(cfg config.AWSConfig) (*S3Store, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Store{
		client: s3.New(sess),
		bucket: cfg.S3Bucket,
	}, nil
}

func (s *S3Store) Put(r io.Reader, extHint string) (string, error) {
	// PutObject needs a seekable body with a known length
	body, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}

	name := GenerateName(extHint)

	_, err = s.client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(name),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}

	return name, nil
}

func (s *S3Store) Delete(ref string) (bool, error) {
	// S3 deletes are silently idempotent; probe first so callers learn
	// whether a blob was actually removed.
	exists, err := s.Exists(ref)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	_, err = s.client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete object: %w", err)
	}

	return true, nil
}

func (s *S3Store) Exists(ref string) (bool, error) {
	_, err := s.client.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		if aerr, ok := err.(awserr.RequestFailure); ok && aerr.StatusCode() == 404 {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object: %w", err)
	}
	return true, nil
}
