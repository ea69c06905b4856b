package aws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"bitwise74/file-api/internal/blob"
	"bitwise74/file-api/pkg/validators"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Objects bigger than this are sent with a multipart upload
const minMultipartSize = 12 << 20

var (
	_ blob.Store  = (*S3Client)(nil)
	_ blob.Lister = (*S3Client)(nil)
)

func (c *S3Client) Put(ctx context.Context, key string, src validators.Source, contentType string) error {
	if !blob.ValidKey(key) {
		return fmt.Errorf("%w: %q", blob.ErrInvalidKey, key)
	}

	input := &s3.PutObjectInput{
		Bucket: c.Bucket,
		Key:    aws.String(key),
		Body:   io.NewSectionReader(src, 0, src.Size()),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if src.Size() > minMultipartSize {
		uploader := manager.NewUploader(c.C, func(u *manager.Uploader) {
			u.Concurrency = 5
			u.PartSize = 6 << 20
		})

		if _, err := uploader.Upload(ctx, input); err != nil {
			return fmt.Errorf("failed to upload object, %w", err)
		}

		return nil
	}

	input.ContentLength = aws.Int64(src.Size())

	if _, err := c.C.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to put object, %w", err)
	}

	return nil
}

func (c *S3Client) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := c.C.GetObject(ctx, &s3.GetObjectInput{
		Bucket: c.Bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
		}

		return nil, fmt.Errorf("failed to get object, %w", err)
	}

	return out.Body, nil
}

func (c *S3Client) Delete(ctx context.Context, key string) error {
	_, err := c.C.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: c.Bucket,
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete object, %w", err)
	}

	return nil
}

// URLFor returns a public URL when one is configured, otherwise a presigned
// GET URL
func (c *S3Client) URLFor(ctx context.Context, key string) (string, error) {
	if c.publicURL != "" {
		return url.JoinPath(c.publicURL, key)
	}

	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: c.Bucket,
		Key:    aws.String(key),
	}, s3.WithPresignExpires(c.ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign object url, %w", err)
	}

	return req.URL, nil
}

func (c *S3Client) List(ctx context.Context, prefix string) ([]blob.Object, error) {
	input := &s3.ListObjectsV2Input{Bucket: c.Bucket}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var objects []blob.Object

	p := s3.NewListObjectsV2Paginator(c.C, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects, %w", err)
		}

		for _, o := range page.Contents {
			obj := blob.Object{Key: aws.ToString(o.Key)}
			if o.LastModified != nil {
				obj.ModifiedAt = *o.LastModified
			}

			objects = append(objects, obj)
		}
	}

	return objects, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || strings.EqualFold(code, "NoSuchKey")
	}

	return false
}
