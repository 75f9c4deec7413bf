package s3blob

import (
	"cmp"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/domain"
)

const (
	// minPartSize is the smallest part S3 accepts in a multipart upload.
	minPartSize int64 = 5 << 20

	uploadConcurrency = 3
	defaultMediaType  = "application/octet-stream"
)

// Writer uploads export objects through the SDK upload manager. Bodies larger
// than one part go up as a concurrent multipart upload.
type Writer struct {
	uploader *manager.Uploader
	bucket   string
}

var _ domain.BlobWriter = (*Writer)(nil)

// NewWriter creates a Writer for the client's bucket. partSize is raised to
// the S3 minimum.
func NewWriter(c *Client, partSize int64) *Writer {
	uploader := manager.NewUploader(c.S3(), func(u *manager.Uploader) {
		u.PartSize = max(partSize, minPartSize)
		u.Concurrency = uploadConcurrency
	})
	return &Writer{uploader: uploader, bucket: c.Bucket()}
}

// Put uploads data under key.
func (w *Writer) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	_, err := w.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(cmp.Or(contentType, defaultMediaType)),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put s3://%s/%s: %w", w.bucket, key, err)
	}
	return nil
}
