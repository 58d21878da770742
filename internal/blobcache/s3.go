package blobcache

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store is the production ObjectStore: an S3-compatible client fetching
// submission blobs from one bucket and dataset archives (keyed
// "<roundID>/numerai_datasets.zip") from another.
type S3Store struct {
	client            *s3.Client
	submissionsBucket string
	datasetsBucket    string
}

// NewS3Store loads AWS credentials/region from the environment (the
// standard default chain: env vars, shared config, instance role) and
// builds an S3Store against the two configured buckets.
func NewS3Store(ctx context.Context, submissionsBucket, datasetsBucket string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &S3Store{
		client:            s3.NewFromConfig(cfg),
		submissionsBucket: submissionsBucket,
		datasetsBucket:    datasetsBucket,
	}, nil
}

func (s *S3Store) DownloadSubmission(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.submissionsBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object s3://%s/%s: %w", s.submissionsBucket, key, err)
	}
	return out.Body, nil
}

func (s *S3Store) DownloadDatasetArchive(ctx context.Context, roundID string) (io.ReadCloser, error) {
	key := fmt.Sprintf("%s/numerai_datasets.zip", roundID)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.datasetsBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object s3://%s/%s: %w", s.datasetsBucket, key, err)
	}
	return out.Body, nil
}
