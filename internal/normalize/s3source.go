package normalize

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/foliolab/enrich/internal/apperrors"
)

// S3Source fetches document text from an S3-compatible object store.
// DigitalOcean Spaces speaks the same API, so one client covers both
// without a provider-specific wrapper.
type S3Source struct {
	client *s3.Client
	bucket string
}

// NewS3Source builds a client against endpoint (empty for AWS S3
// itself, or a custom S3-compatible endpoint URL).
func NewS3Source(ctx context.Context, bucket, region, endpoint string) (*S3Source, error) {
	optFns := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, apperrors.NewFatalError("normalize", "failed to load aws config", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = endpoint != ""
	})
	return &S3Source{client: client, bucket: bucket}, nil
}

// Fetch treats locator as an object key within the configured bucket.
func (s *S3Source) Fetch(ctx context.Context, locator string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(locator),
	})
	if err != nil {
		return "", apperrors.NewTransientDependencyError("normalize", "s3 GetObject failed for "+locator, err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return "", apperrors.NewTransientDependencyError("normalize", "failed reading s3 object body", err)
	}
	return buf.String(), nil
}
