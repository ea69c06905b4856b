// Package aws defines functions used to interact with the AWS API
package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/spf13/viper"
)

// Options describes an S3 compatible bucket
type Options struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	// Optional. Set for S3 compatible providers such as R2 or MinIO
	Endpoint     string
	UsePathStyle bool
	// Optional. When set URLFor returns PublicURL/key instead of a presigned URL
	PublicURL string
	// Lifetime of presigned URLs
	PresignTTL time.Duration
}

type S3Client struct {
	C         *s3.Client
	Bucket    *string
	publicURL string
	presign   *s3.PresignClient
	ttl       time.Duration
}

// NewS3 connects to the AWS bucket configured under the aws config section
func NewS3(ctx context.Context) (*S3Client, error) {
	return New(ctx, Options{
		AccessKeyID:     viper.GetString("aws.access_key"),
		SecretAccessKey: viper.GetString("aws.secret_access_key"),
		Region:          viper.GetString("aws.region"),
		Bucket:          viper.GetString("aws.bucket"),
		PublicURL:       viper.GetString("aws.public_url"),
		PresignTTL:      viper.GetDuration("storage.presign_ttl"),
	})
}

// New builds a client for any S3 compatible bucket and makes sure the bucket
// exists
func New(ctx context.Context, o Options) (*S3Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			o.AccessKeyID,
			o.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		so.Region = o.Region
		so.UsePathStyle = o.UsePathStyle

		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
		}
	})

	c := NewFromClient(client, o.Bucket, o.PublicURL, o.PresignTTL)

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: c.Bucket,
	})
	if err != nil {
		var apiErr smithy.APIError

		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "NotFound" {
				return nil, fmt.Errorf("bucket '%s' does not exist", o.Bucket)
			}
		}

		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	return c, nil
}

// NewFromClient wraps an already configured client without checking the
// bucket
func NewFromClient(client *s3.Client, bucket, publicURL string, presignTTL time.Duration) *S3Client {
	if presignTTL <= 0 {
		presignTTL = 15 * time.Minute
	}

	return &S3Client{
		C:         client,
		Bucket:    aws.String(bucket),
		publicURL: publicURL,
		presign:   s3.NewPresignClient(client),
		ttl:       presignTTL,
	}
}
