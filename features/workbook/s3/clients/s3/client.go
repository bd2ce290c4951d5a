// Package s3 wraps the AWS S3 SDK behind the byte-oriented surface the
// workbook store needs. Uploads above the part threshold go through the
// multipart API with an abort on any failure so no orphaned upload is left
// accruing storage.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// partSize is both the multipart threshold and the size of each part.
const partSize = 5 * 1024 * 1024

const defaultPresignTTL = 24 * time.Hour

type (
	// Client is the object storage surface consumed by the workbook store.
	Client interface {
		// Upload writes data under key, choosing single-put or multipart by size.
		Upload(ctx context.Context, key string, data []byte, contentType string) error
		// Download reads the full object under key.
		Download(ctx context.Context, key string) ([]byte, error)
		// PresignGet mints a presigned GET URL. Zero ttl selects the default.
		PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
		// Bucket reports the bucket all operations target.
		Bucket() string
	}

	// API is the subset of the S3 service client the wrapper uses.
	API interface {
		PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
		GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
		CreateMultipartUpload(ctx context.Context, params *awss3.CreateMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.CreateMultipartUploadOutput, error)
		UploadPart(ctx context.Context, params *awss3.UploadPartInput, optFns ...func(*awss3.Options)) (*awss3.UploadPartOutput, error)
		CompleteMultipartUpload(ctx context.Context, params *awss3.CompleteMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.CompleteMultipartUploadOutput, error)
		AbortMultipartUpload(ctx context.Context, params *awss3.AbortMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.AbortMultipartUploadOutput, error)
	}

	// Presigner is the subset of the S3 presign client the wrapper uses.
	Presigner interface {
		PresignGetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	}

	// Options configures the S3 client wrapper.
	Options struct {
		// API is the S3 service client. Required.
		API API
		// Presigner mints presigned URLs. Required.
		Presigner Presigner
		// Bucket is the target bucket. Required.
		Bucket string
		// PresignTTL is the default URL expiry. Defaults to 24h.
		PresignTTL time.Duration
	}

	client struct {
		api        API
		presigner  Presigner
		bucket     string
		presignTTL time.Duration
	}
)

// New validates the options and returns a client.
func New(opts Options) (Client, error) {
	if opts.API == nil {
		return nil, errors.New("s3 api is required")
	}
	if opts.Presigner == nil {
		return nil, errors.New("presigner is required")
	}
	if opts.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	ttl := opts.PresignTTL
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}
	return &client{
		api:        opts.API,
		presigner:  opts.Presigner,
		bucket:     opts.Bucket,
		presignTTL: ttl,
	}, nil
}

func (c *client) Bucket() string {
	return c.bucket
}

func (c *client) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if len(data) > partSize {
		return c.multipartUpload(ctx, key, data, contentType)
	}
	_, err := c.api.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (c *client) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := c.api.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

func (c *client) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = c.presignTTL
	}
	req, err := c.presigner.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, awss3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

func (c *client) multipartUpload(ctx context.Context, key string, data []byte, contentType string) error {
	create, err := c.api.CreateMultipartUpload(ctx, &awss3.CreateMultipartUploadInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("create multipart upload %s: %w", key, err)
	}
	uploadID := create.UploadId

	var parts []types.CompletedPart
	for i, off := 0, 0; off < len(data); i, off = i+1, off+partSize {
		end := off + partSize
		if end > len(data) {
			end = len(data)
		}
		partNumber := int32(i + 1)
		part, err := c.api.UploadPart(ctx, &awss3.UploadPartInput{
			Bucket:     aws.String(c.bucket),
			Key:        aws.String(key),
			UploadId:   uploadID,
			PartNumber: aws.Int32(partNumber),
			Body:       bytes.NewReader(data[off:end]),
		})
		if err != nil {
			c.abort(ctx, key, uploadID)
			return fmt.Errorf("upload part %d of %s: %w", partNumber, key, err)
		}
		parts = append(parts, types.CompletedPart{
			ETag:       part.ETag,
			PartNumber: aws.Int32(partNumber),
		})
	}

	_, err = c.api.CompleteMultipartUpload(ctx, &awss3.CompleteMultipartUploadInput{
		Bucket:          aws.String(c.bucket),
		Key:             aws.String(key),
		UploadId:        uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		c.abort(ctx, key, uploadID)
		return fmt.Errorf("complete multipart upload %s: %w", key, err)
	}
	return nil
}

func (c *client) abort(ctx context.Context, key string, uploadID *string) {
	// Best effort; the bucket lifecycle rule reaps stragglers.
	_, _ = c.api.AbortMultipartUpload(ctx, &awss3.AbortMultipartUploadInput{
		Bucket:   aws.String(c.bucket),
		Key:      aws.String(key),
		UploadId: uploadID,
	})
}
