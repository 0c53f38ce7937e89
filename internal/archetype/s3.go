package archetype

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectGetter is the subset of the S3 client used to fetch a published bank.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// maxBankSize bounds how much of a published bank is read into memory.
const maxBankSize = 8 << 20

// LoadS3 fetches an operator-published content bank from S3 and validates it
// with the same rules as the embedded bank.
func LoadS3(ctx context.Context, client ObjectGetter, bucket, key string) (*Catalog, error) {
	if client == nil {
		return nil, fmt.Errorf("archetype: s3 client not configured")
	}
	bucket = strings.TrimSpace(bucket)
	key = strings.TrimSpace(key)
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("archetype: s3 bucket and key are required")
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("archetype: get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxBankSize+1))
	if err != nil {
		return nil, fmt.Errorf("archetype: read s3://%s/%s: %w", bucket, key, err)
	}
	if len(data) > maxBankSize {
		return nil, fmt.Errorf("%w: s3://%s/%s exceeds %d bytes", ErrInvalidCatalog, bucket, key, maxBankSize)
	}
	return Parse(data)
}

// LoadWithOverlay returns the embedded catalog, overlaid with the S3 bank when
// bucket is set.
func LoadWithOverlay(ctx context.Context, client ObjectGetter, bucket, key string) (*Catalog, error) {
	base, err := LoadEmbedded()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(bucket) == "" {
		return base, nil
	}
	overlay, err := LoadS3(ctx, client, bucket, key)
	if err != nil {
		return nil, err
	}
	return base.Overlay(overlay), nil
}
