package evidence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"
)

// S3API is the subset of the S3 client used by S3Store
type S3API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store writes evidence records to a bucket with conditional puts
type S3Store struct {
	api    S3API
	bucket string
}

func NewS3Store(api S3API, bucket string) *S3Store {
	return &S3Store{api: api, bucket: bucket}
}

// NewS3StoreFromConfig builds an S3Store on an S3 client for cfg
func NewS3StoreFromConfig(cfg aws.Config, bucket string) *S3Store {
	return NewS3Store(s3.NewFromConfig(cfg), bucket)
}

func (s *S3Store) Location() string {
	return s.bucket
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "PreconditionFailed", "ConditionalRequestConflict":
				return fmt.Errorf("s3://%s/%s: %w", s.bucket, key, ErrExists)
			}
		}
		return fmt.Errorf("failed to write s3://%s/%s: %w", s.bucket, key, err)
	}
	logrus.WithFields(logrus.Fields{"bucket": s.bucket, "key": key}).Info("Wrote evidence record")
	return nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", s.bucket, prefix, err)
		}
		for _, o := range page.Contents {
			objects = append(objects, Object{
				Key:          aws.ToString(o.Key),
				LastModified: aws.ToTime(o.LastModified),
			})
		}
	}
	return objects, nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
