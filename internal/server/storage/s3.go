package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}
)

type s3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type s3PresignAPI interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Storage talks to AWS S3 or any S3-compatible endpoint such as MinIO.
type S3Storage struct {
	client   s3API
	presign  s3PresignAPI
	validity time.Duration
}

// NewS3Storage builds a client with static credentials. A non-empty
// baseEndpoint switches to path-style addressing against that endpoint.
func NewS3Storage(ctx context.Context, region, accessKey, secretKey, baseEndpoint string, validity time.Duration) (*S3Storage, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if baseEndpoint != "" {
			o.BaseEndpoint = aws.String(baseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{
		client:   client,
		presign:  newS3PresignClient(client),
		validity: validity,
	}, nil
}

func isS3NotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func (s *S3Storage) Exists(ctx context.Context, path string) (bool, error) {
	return exists(ctx, s, path)
}

func (s *S3Storage) Info(ctx context.Context, path string) (*ObjectInfo, error) {
	u, err := ParseObjectURL(path, SchemeS3)
	if err != nil {
		return nil, err
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.Bucket),
		Key:    aws.String(u.Object),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("s3 head %s: %w", path, err)
	}
	return &ObjectInfo{
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		Updated:     aws.ToTime(out.LastModified),
	}, nil
}

// Delete on S3 succeeds for missing keys, so presence is checked first
// when the caller wants to hear about it.
func (s *S3Storage) Delete(ctx context.Context, path string, onlyIfPresent bool) error {
	u, err := ParseObjectURL(path, SchemeS3)
	if err != nil {
		return err
	}
	if !onlyIfPresent {
		if _, err := s.Info(ctx, path); err != nil {
			return err
		}
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.Bucket),
		Key:    aws.String(u.Object),
	})
	if err != nil && !(onlyIfPresent && isS3NotFound(err)) {
		return fmt.Errorf("s3 delete %s: %w", path, err)
	}
	return nil
}

func (s *S3Storage) SignedUploadURL(ctx context.Context, path string) (string, error) {
	u, err := ParseObjectURL(path, SchemeS3)
	if err != nil {
		return "", err
	}
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.Bucket),
		Key:    aws.String(u.Object),
	}, s3.WithPresignExpires(s.validity))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func (s *S3Storage) SignedDownloadURL(ctx context.Context, path string) (string, error) {
	u, err := ParseObjectURL(path, SchemeS3)
	if err != nil {
		return "", err
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Bucket),
		Key:    aws.String(u.Object),
	}, s3.WithPresignExpires(s.validity))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func (s *S3Storage) DownloadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	u, err := ParseObjectURL(path, SchemeS3)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Bucket),
		Key:    aws.String(u.Object),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("s3 get %s: %w", path, err)
	}
	return out.Body, nil
}
