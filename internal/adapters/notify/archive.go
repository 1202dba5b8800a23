package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/DanielPopoola/donation-gateway/internal/config"
	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the part of *s3.Client the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive keeps a JSON copy of every receipt, keyed by receipt number so a
// resend overwrites rather than duplicates.
type S3Archive struct {
	client ObjectPutter
	bucket string
}

func NewS3Archive(client ObjectPutter, bucket string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket}
}

func NewS3Client(ctx context.Context, cfg config.NotifyConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.ArchiveRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.ArchiveRegion))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.ArchiveEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.ArchiveEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (a *S3Archive) SendReceipt(ctx context.Context, receipt domain.Receipt) error {
	body, err := json.Marshal(toPayload(receipt))
	if err != nil {
		return fmt.Errorf("error marshalling json: %w", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(ArchiveKey(receipt)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive receipt: %w", err)
	}
	return nil
}

func ArchiveKey(r domain.Receipt) string {
	return fmt.Sprintf("receipts/%s/%s.json", r.CompletedAt.UTC().Format("2006/01"), r.Number)
}
