package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/smartlead-export/internal/pkg/logger"
)

// s3API is the subset of the S3 client the store uses; narrowed for tests.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store persists the fingerprint set as a single S3 object, for
// deployments where the exporter host is ephemeral and local files do not
// survive between runs.
type S3Store struct {
	client s3API
	bucket string
	key    string
}

// NewS3Store creates an S3-backed store.
func NewS3Store(ctx context.Context, bucket, region, key string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for tracking store: %w", err)
	}
	return &S3Store{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		key:    key,
	}, nil
}

// Load retrieves the persisted set. A missing object or an unreadable
// payload starts an empty set, mirroring the file store.
func (ss *S3Store) Load(ctx context.Context) ([]string, error) {
	resp, err := ss.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ss.bucket),
		Key:    aws.String(ss.key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("S3 GetObject %s/%s: %w", ss.bucket, ss.key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading tracking object body: %w", err)
	}

	var payload trackingPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.Warn("tracking object corrupt, starting with empty set",
			"bucket", ss.bucket, "key", ss.key, "error", err)
		return nil, nil
	}
	return payload.Fingerprints, nil
}

// Save writes the set to S3.
func (ss *S3Store) Save(ctx context.Context, fingerprints []string) error {
	payload := trackingPayload{
		UpdatedAt:    time.Now().UTC(),
		Fingerprints: fingerprints,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling tracking payload: %w", err)
	}

	contentType := "application/json"
	_, err = ss.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ss.bucket),
		Key:         aws.String(ss.key),
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject %s/%s: %w", ss.bucket, ss.key, err)
	}
	return nil
}

// Description identifies the backing object for status output.
func (ss *S3Store) Description() string {
	return fmt.Sprintf("s3://%s/%s", ss.bucket, ss.key)
}

// isNotFound reports whether an S3 error means the object does not exist.
// AWS SDK v2 surfaces these as errors containing "NoSuchKey" or "NotFound".
func isNotFound(err error) bool {
	s := err.Error()
	return strings.Contains(s, "NoSuchKey") || strings.Contains(s, "NotFound") || strings.Contains(s, "404")
}
